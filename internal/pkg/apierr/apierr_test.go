package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindClient, KindOf(Client("bad payload")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("no such cycle")))
	assert.Equal(t, KindValidation, KindOf(Validation("missing summary_report")))
	assert.Equal(t, KindDependency, KindOf(Dependency(errors.New("broker down"), "publish")))

	// Unclassified errors come from collaborators.
	assert.Equal(t, KindDependency, KindOf(errors.New("plain")))

	// Kind survives wrapping.
	wrapped := fmt.Errorf("handling request: %w", NotFound("gone"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Client("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Validation("x")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Dependency(errors.New("x"), "y")))
}

func TestNilPassthrough(t *testing.T) {
	assert.NoError(t, New(KindClient, nil))
	assert.NoError(t, Dependency(nil, "no-op"))
}
