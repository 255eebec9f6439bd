package promo

import (
	"fmt"
)

// maxGenerateAttempts bounds collision retries. With a 32-character
// alphabet and an 8-character body there are 32^8 (~1.1e12) bodies per
// type, so even one retry is already extraordinary.
const maxGenerateAttempts = 10

// CodeGenerator produces cryptographically random, collision-free promo
// codes. It consults the CodeStore's full code set (both types) for
// uniqueness and persists the new code before returning it.
type CodeGenerator struct {
	random RandomSource
	clock  Clock
	codes  *CodeStore
}

// NewCodeGenerator wires a generator to its random source, clock, and
// backing store.
func NewCodeGenerator(random RandomSource, clock Clock, codes *CodeStore) *CodeGenerator {
	return &CodeGenerator{random: random, clock: clock, codes: codes}
}

// Generate creates, persists, and returns one new code of the given
// type. Fails with ErrGenerationExhausted after bounded retries.
func (g *CodeGenerator) Generate(codeType CodeType) (PromoCode, error) {
	if !codeType.Valid() {
		return PromoCode{}, fmt.Errorf("%w: unknown code type %q", ErrInvalidFormat, codeType)
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		body, err := g.randomBody()
		if err != nil {
			return PromoCode{}, fmt.Errorf("draw random code body: %w", err)
		}

		code := codeType.Prefix() + "-" + body
		if g.codes.Contains(code) {
			continue
		}

		issued := PromoCode{
			Code:      code,
			Type:      codeType,
			CreatedAt: g.clock.Now(),
		}
		if err := g.codes.Add(issued); err != nil {
			return PromoCode{}, fmt.Errorf("persist generated code: %w", err)
		}
		return issued, nil
	}

	return PromoCode{}, ErrGenerationExhausted
}

// randomBody draws codeBodyLength random bytes and maps each through the
// restricted alphabet. len(codeAlphabet) is 32 and 256 is a multiple of
// 32, so the byte-to-character mapping carries no modulo bias.
func (g *CodeGenerator) randomBody() (string, error) {
	buf := make([]byte, codeBodyLength)
	if _, err := g.random.Read(buf); err != nil {
		return "", err
	}

	body := make([]byte, codeBodyLength)
	for i, b := range buf {
		body[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(body), nil
}
