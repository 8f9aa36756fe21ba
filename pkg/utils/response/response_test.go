package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/ragx/pkg/utils/errors"
)

func TestSuccessEnvelope(t *testing.T) {
	r := Success(map[string]int{"count": 3})

	assert.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, "OK", r.Code)
	assert.True(t, r.IsSuccess)
	assert.NotNil(t, r.Result)
}

func TestErrEnvelope(t *testing.T) {
	r := Err(errors.ErrInvalidStrategy)

	assert.Equal(t, http.StatusBadRequest, r.Status)
	assert.Equal(t, "INVALID_STRATEGY", r.Code)
	assert.False(t, r.IsSuccess)
	assert.Nil(t, r.Result)
}

func TestErrWithLang(t *testing.T) {
	r := ErrWithLang(errors.ErrNotFound, "zh")
	assert.Equal(t, "资源不存在", r.Message)

	r = ErrWithLang(errors.ErrNotFound, "en")
	assert.Equal(t, "Resource not found", r.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	r := FromError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, r.Status)
	assert.Equal(t, "INTERNAL_ERROR", r.Code)
}

func TestPage(t *testing.T) {
	r := Page([]string{"a", "b"}, 12, 2, 5)
	pd, ok := r.Result.(*PageData)
	assert.True(t, ok)
	assert.Equal(t, int64(12), pd.Total)
	assert.Equal(t, 2, pd.Page)
}

func TestWithRequestID(t *testing.T) {
	r := Success(nil).WithRequestID("req-123")
	assert.Equal(t, "req-123", r.RequestID)
}
