package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Welcome(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	subject, body, err := r.Render(KindWelcome, MessageData{
		StoreName: "Acme Shop",
		Name:      "ada lovelace",
		Email:     "ada@x.com",
		BaseURL:   "https://shop.example",
		CreatedAt: time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, "Welcome to Acme Shop", subject)
	assert.Contains(t, body, "Hello Ada Lovelace,")
	assert.Contains(t, body, "Your Acme Shop account for ada@x.com is ready.")
	assert.Contains(t, body, "https://shop.example/login")
	assert.Contains(t, body, "Mar 5, 2024 14:30 UTC")
}

func TestRenderer_WelcomeWithoutOptionalFields(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, body, err := r.Render(KindWelcome, MessageData{StoreName: "Acme Shop", Email: "a@x.com"})

	require.NoError(t, err)
	assert.Contains(t, body, "Hello there,")
	assert.NotContains(t, body, "/login")
}

func TestRenderer_UnknownKind(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, _, err = r.Render("password_reset", MessageData{})

	assert.ErrorContains(t, err, "template not found")
}
