// Command promogate runs the offline promo-code licensing service the
// host application talks to over loopback HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"promogate/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "promogate: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "promogate: %v\n", err)
		os.Exit(1)
	}
}
