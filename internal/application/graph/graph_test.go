package graph

import (
	"math/rand"
	"testing"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	g := Build([]domain.Mandate{
		mandate(1, 0, 0),
		mandate(2, 1, 1),
		mandate(3, 1, 2),
		mandate(4, 7, 0),
		mandate(2, 3, 0),
	})

	assert.Equal(t, []string{"1", "2", "3", "4"}, g.IDs())
	assert.Equal(t, []string{"1"}, g.Dependencies("2"))
	assert.Equal(t, []string{"1", "2"}, g.Dependencies("3"))
	assert.Empty(t, g.Dependencies("4"))
	assert.Equal(t, []string{"2", "3"}, g.Dependents("1"))
	assert.Equal(t, []string{"1", "4"}, g.Roots())

	m, ok := g.Mandate("2")
	assert.True(t, ok)
	assert.Equal(t, uint16(1), m.Conditions.NeedFulfilled)
}

func TestConnected(t *testing.T) {
	g := Build([]domain.Mandate{
		mandate(1, 0, 0),
		mandate(2, 1, 0),
		mandate(3, 0, 2),
		mandate(4, 0, 0),
		mandate(5, 4, 0),
	})

	assert.Equal(t, map[string]bool{"1": true, "2": true, "3": true}, g.Connected("3"))
	assert.Equal(t, map[string]bool{"4": true, "5": true}, g.Connected("4"))
	assert.Empty(t, g.Connected(""))
	assert.Empty(t, g.Connected("42"))
}

func TestConnectedIsSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		n := 1 + r.Intn(20)
		mandates := make([]domain.Mandate, n)
		for j := range mandates {
			// arbitrary references, cycles and dangling ones included
			mandates[j] = mandate(uint16(j+1), uint16(r.Intn(n+3)), uint16(r.Intn(n+3)))
		}
		g := Build(mandates)
		for _, a := range g.IDs() {
			fromA := g.Connected(a)
			assert.True(t, fromA[a])
			for _, b := range g.IDs() {
				assert.Equal(t, fromA[b], g.Connected(b)[a], "connected(%s) and connected(%s) disagree", a, b)
			}
		}
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(powers101()))
	assert.Empty(t, v.Issues(powers101()))

	issues := v.Issues([]domain.Mandate{
		mandate(1, 1, 0),
		mandate(2, 0, 9),
		mandate(2, 0, 0),
		mandate(0, 0, 0),
	})
	assert.Equal(t, []string{
		"duplicate mandate index: 2",
		"mandate index 0 is reserved",
		"mandate 1 references itself in needFulfilled",
		"mandate 2 references unknown mandate 9 in needNotFulfilled",
	}, issues)
	assert.Error(t, v.Validate([]domain.Mandate{mandate(1, 1, 0)}))
}
