// Package device manages the stable per-install identifier that is attached
// to every outgoing request, so the backend can tell sessions on different
// installs apart.
package device

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-go/internal/filex"
)

// HeaderName is the request header carrying the device identifier.
const HeaderName = "X-Device-Id"

// LoadOrCreate returns the identifier stored at path, generating and
// persisting a fresh one on first use. The identifier survives restarts
// until Rotate is called or the file is deleted.
func LoadOrCreate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
		// Corrupted content: fall through and regenerate.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	return Rotate(path)
}

// Rotate replaces the stored identifier with a freshly generated one.
func Rotate(path string) (string, error) {
	id := uuid.NewString()
	if err := filex.AtomicWrite(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
