package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Clean(t *testing.T) {
	assert.Empty(t, Validate(loadValid(t)))
}

func TestValidate_UnknownStates(t *testing.T) {
	def, err := Load([]byte(`
states:
  - name: hit
    mutex: [ghost]
scenes:
  - name: s
    triggers: [hit, phantom]
    handlers:
      - states: '["hit", 0, 1] and ["missing", 0, 1]'
        interrupt_states: '["nowhere"]'
        sub_handlers:
          - states: '["deep"]'
            operations:
              - op: wait
`))
	require.NoError(t, err)

	issues := Validate(def)
	var got []string
	for _, is := range issues {
		got = append(got, is.String())
	}
	assert.Equal(t, []string{
		`E210: states[0].mutex: mutex peer "ghost" is not declared`,
		`E214: scenes[0].triggers: trigger "phantom" is not declared`,
		`E210: scenes[0].handlers[0].states: state "missing" is not declared`,
		`E210: scenes[0].handlers[0].interrupt_states: state "nowhere" is not declared`,
		`E210: scenes[0].handlers[0].sub_handlers[0].states: state "deep" is not declared`,
	}, got)
}

func TestUsedStates(t *testing.T) {
	assert.Equal(t, []string{"enemy", "hit", "run", "stun", "walk"}, UsedStates(loadValid(t)))
}
