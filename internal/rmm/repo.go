package rmm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"rmmhunt/internal/logging"
)

// signaturesSubdir is the directory within the RMML repository that
// holds the signature YAML files.
const signaturesSubdir = "RMMs"

// CloneRepo clones the RMML signature repository into a directory named
// after the repository under dest and returns the path to its
// signatures directory. An existing clone at the target path is removed
// first so every run starts from a fresh checkout.
func CloneRepo(ctx context.Context, repoURL, dest string, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(repoURL) == "" {
		return "", fmt.Errorf("repository URL cannot be empty")
	}

	name := strings.TrimSuffix(filepath.Base(strings.TrimRight(repoURL, "/")), ".git")
	target := filepath.Join(dest, name)

	if _, err := os.Stat(target); err == nil {
		log.Info("removing existing signature repository clone", logging.Path(target))
		if err := os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("removing existing clone: %w", err)
		}
	}

	log.Info("cloning signature repository",
		zap.String("url", repoURL), logging.Path(target))
	_, err := git.PlainCloneContext(ctx, target, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	})
	if err != nil {
		return "", fmt.Errorf("cloning %s: %w", repoURL, err)
	}

	sigDir := filepath.Join(target, signaturesSubdir)
	if err := validateSignaturesDir(sigDir); err != nil {
		return "", err
	}

	log.Info("signature repository cloned", logging.Path(sigDir))
	return sigDir, nil
}

func validateSignaturesDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("signatures directory not found in cloned repository: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !entry.IsDir() && (ext == ".yaml" || ext == ".yml") {
			return nil
		}
	}
	return fmt.Errorf("no signature YAML files found in %s", dir)
}
