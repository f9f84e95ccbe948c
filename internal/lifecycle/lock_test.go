package lifecycle

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireLock_SecondCallFails(t *testing.T) {
	ln, err := AcquireLock("remotevibe")
	require.NoError(t, err)
	defer ln.Close()

	_, err = AcquireLock("remotevibe")
	require.Error(t, err)
}

func TestAcquireLock_ServesIdentifyingResponse(t *testing.T) {
	ln, err := AcquireLock("remotevibe")
	require.NoError(t, err)
	defer ln.Close()

	resp, err := http.Get("http://127.0.0.1:41999/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "remotevibe")
}
