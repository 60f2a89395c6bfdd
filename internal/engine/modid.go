package engine

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NextModID resolves the directory name a mod should install under: the
// modpack's declared name if that directory doesn't already exist under
// loaderRoot, otherwise a fresh uuid so two mods named identically don't
// collide.
func NextModID(loaderRoot, declaredName string) string {
	if declaredName == "" {
		return uuid.NewString()
	}
	if _, err := os.Stat(filepath.Join(loaderRoot, declaredName)); os.IsNotExist(err) {
		return declaredName
	}
	return uuid.NewString()
}
