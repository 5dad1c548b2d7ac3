package ccerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(NewValidation("field", "bad")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NewNotFound("rule", "1")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(NewForbidden("nope")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Storage("op", errors.New("boom"))))
}

func TestStorageNilIsNil(t *testing.T) {
	assert.NoError(t, Storage("op", nil))
	assert.NoError(t, Fatal(nil))
}

func TestStorageUnwrap(t *testing.T) {
	inner := errors.New("inner")
	wrapped := Storage("op", inner)
	assert.ErrorIs(t, wrapped, inner)
}
