package wiki

import (
	"errors"
	"os"

	"github.com/cryptograss/railbot/internal/domain"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrPageNotFound)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec,G304
}
