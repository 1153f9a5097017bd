package apiv1

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPISpecIsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(OpenAPISpec)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, path := range []string{
		"/api/checkout/session",
		"/api/subscription/cancel",
		"/api/subscription/status",
		"/api/users",
		"/api/users/me",
		"/api/results",
		"/api/leaderboard/{game}",
		"/webhooks/stripe",
		"/checkout/return",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "path %s missing", path)
	}

	game := doc.Components.Schemas["Game"].Value
	require.NotNil(t, game)
	assert.Len(t, game.Enum, 7)
}
