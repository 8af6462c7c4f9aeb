package persona

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoodDeterministicUnderSeed(t *testing.T) {
	p1 := NewProvider(WithRand(rand.New(rand.NewSource(7))))
	p2 := NewProvider(WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 20; i++ {
		assert.Equal(t, p1.Mood(), p2.Mood())
	}
}

func TestMoodComesFromPool(t *testing.T) {
	moods := []string{"quiet", "bright"}
	p := NewProvider(WithMoods(moods), WithRand(rand.New(rand.NewSource(1))))

	for i := 0; i < 10; i++ {
		assert.Contains(t, moods, p.Mood())
	}
}

func TestTextOverrides(t *testing.T) {
	p := NewProvider(WithTexts("custom persona", "", "custom safety"))

	assert.Equal(t, "custom persona", p.Persona())
	assert.Equal(t, DefaultBehavior, p.Behavior())
	assert.Equal(t, "custom safety", p.Safety())
}
