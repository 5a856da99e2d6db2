package loadtest

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

// Payload is the body of a user-creation request.
type Payload struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Document string `json:"document"`
}

// PayloadGenerator synthesizes payloads from a source of floats in [0, 1).
// Generated values are not unique; collisions are left to the target.
type PayloadGenerator struct {
	rnd func() float64
}

// NewPayloadGenerator uses rnd for every draw; nil means math/rand/v2.Float64,
// which is safe for concurrent use.
func NewPayloadGenerator(rnd func() float64) *PayloadGenerator {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &PayloadGenerator{rnd: rnd}
}

func (g *PayloadGenerator) Generate() Payload {
	email := fmt.Sprintf("user_%d@email.com", g.scaled(10000))
	name := fmt.Sprintf("TesteName%d LastName%d", g.scaled(1000), g.scaled(1000))
	document := strconv.FormatInt(int64(math.Floor(10000000000+g.rnd()*90000000000)), 10)
	return Payload{
		Email:    email,
		Name:     name,
		Document: document,
	}
}

// JSON returns a freshly generated payload encoded as JSON.
func (g *PayloadGenerator) JSON() ([]byte, error) {
	return json.Marshal(g.Generate())
}

func (g *PayloadGenerator) scaled(n float64) int64 {
	return int64(math.Floor(g.rnd() * n))
}
