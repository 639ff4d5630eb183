package geonews

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const pagesBranch = "gh-pages"

var UploadSiteCmd = &cobra.Command{
	Use:   "upload-site",
	Short: "Publish the generated page to GitHub Pages",
	Run: func(cmd *cobra.Command, args []string) {
		if err := uploadSite(cmd.Context()); err != nil {
			log.Error().Err(err).Msg("Failed to upload to GitHub Pages")
			return
		}
		log.Info().Msg("Successfully uploaded to GitHub Pages")
	},
}

func uploadSite(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(Config.OutputPath); err != nil {
		return fmt.Errorf("%s not found, run 'generate-page' first: %w", Config.OutputPath, err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	return PublishPage(ctx, cwd, Config.OutputPath)
}

// PublishPage commits pagePath as index.html on the gh-pages branch of the
// origin remote of the repository in repoDir and pushes it. Nothing is pushed
// when the page is unchanged.
func PublishPage(ctx context.Context, repoDir, pagePath string) error {
	html, err := os.ReadFile(pagePath)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	if _, err := git(ctx, repoDir, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("not in a git repository: %w", err)
	}
	remoteURL, err := git(ctx, repoDir, "config", "--get", "remote.origin.url")
	if err != nil {
		return fmt.Errorf("failed to get remote URL: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "geonews-pages-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warn().Err(err).Msg("Failed to remove temp directory")
		}
	}()

	log.Info().Str("remote", remoteURL).Msg("Cloning repository for GitHub Pages")
	if _, err := git(ctx, "", "clone", "--quiet", remoteURL, tempDir); err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	if _, err := git(ctx, tempDir, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+pagesBranch); err == nil {
		if _, err := git(ctx, tempDir, "checkout", pagesBranch); err != nil {
			if _, err := git(ctx, tempDir, "checkout", "-b", pagesBranch, "origin/"+pagesBranch); err != nil {
				return fmt.Errorf("failed to checkout %s branch: %w", pagesBranch, err)
			}
		}
	} else {
		if _, err := git(ctx, tempDir, "checkout", "--orphan", pagesBranch); err != nil {
			return fmt.Errorf("failed to create %s branch: %w", pagesBranch, err)
		}
		// Fails on an empty clone, which is fine.
		if _, err := git(ctx, tempDir, "rm", "-rf", "--quiet", "."); err != nil {
			log.Debug().Err(err).Msg("Nothing to remove from orphan branch")
		}
	}

	if err := os.WriteFile(filepath.Join(tempDir, "index.html"), html, 0644); err != nil {
		return fmt.Errorf("failed to write index.html: %w", err)
	}
	if _, err := git(ctx, tempDir, "add", "index.html"); err != nil {
		return fmt.Errorf("failed to add files to git: %w", err)
	}

	status, err := git(ctx, tempDir, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("failed to check git status: %w", err)
	}
	if status == "" {
		log.Info().Msg("No changes to commit")
		return nil
	}

	commitMessage := fmt.Sprintf("Update news page - %s", time.Now().Format("2006-01-02 15:04:05"))
	if _, err := git(ctx, tempDir, "commit", "--quiet", "-m", commitMessage); err != nil {
		return fmt.Errorf("failed to commit changes: %w", err)
	}
	if _, err := git(ctx, tempDir, "push", "--quiet", "origin", pagesBranch); err != nil {
		return fmt.Errorf("failed to push to %s branch: %w", pagesBranch, err)
	}
	return nil
}

// git runs a git subcommand in dir and returns its trimmed output.
func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w\nOutput: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
