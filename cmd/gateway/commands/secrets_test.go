package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSecretsCommand(t *testing.T) {
	app := NewAppContext()
	cmd := NewSecretsCommand(app)

	assert.Equal(t, "secrets", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "reload")
	assert.Contains(t, names, "migrate")
}
