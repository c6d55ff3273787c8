package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ManifestEntry represents one language in the batch manifest.
type ManifestEntry struct {
	Name    string // language name (e.g. "hare")
	RepoURL string // git URL or local directory of the grammar repository
	Subdir  string // subdirectory containing grammar.json (e.g. "src")
	// Optional comma-separated file extensions from manifest column 4.
	Extensions []string
}

// ParseManifest reads a manifest file with lines of format:
//
//	name repo [subdir] [ext1,ext2,...]
//
// Lines starting with # are comments. Empty lines are skipped.
func ParseManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []ManifestEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid manifest line: %q", line)
		}
		entry := ManifestEntry{
			Name:    fields[0],
			RepoURL: fields[1],
			Subdir:  "src",
		}
		if len(fields) >= 3 {
			entry.Subdir = fields[2]
		}
		if len(fields) >= 4 {
			entry.Extensions = splitList(fields[3])
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// RunBatchManifest generates <name>_grammar.go and <name>_register.go in
// outDir for every manifest entry. Grammars compile in parallel.
func RunBatchManifest(manifest, outDir, pkg string) error {
	entries, err := ParseManifest(manifest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	work, err := os.MkdirTemp("", "grammar2go-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.NumCPU())
	for i, entry := range entries {
		g.Go(func() error {
			repo, err := fetchRepo(ctx, entry.RepoURL, filepath.Join(work, fmt.Sprintf("%d-%s", i, safeFileBase(entry.Name))))
			if err != nil {
				return fmt.Errorf("%s: %w", entry.Name, err)
			}
			if err := generateEntry(entry, repo, outDir, pkg); err != nil {
				return fmt.Errorf("%s: %w", entry.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func generateEntry(entry ManifestEntry, repo, outDir, pkg string) error {
	path, err := findGrammarFile(filepath.Join(repo, entry.Subdir))
	if err != nil {
		return err
	}
	gen, err := Build(path, entry.Name)
	if err != nil {
		return err
	}
	if gen.Queries, err = ReadQueries(filepath.Join(repo, "queries")); err != nil {
		return err
	}
	gen.Extensions = entry.Extensions

	base := safeFileBase(entry.Name)
	if err := writeGo(filepath.Join(outDir, base+"_grammar.go"), func() (string, error) { return GenerateGo(gen, pkg) }); err != nil {
		return err
	}
	if err := writeGo(filepath.Join(outDir, base+"_register.go"), func() (string, error) { return GenerateRegister(gen, pkg) }); err != nil {
		return err
	}
	log.Infof("generated %s: %d states, %d symbols, %d queries", entry.Name, gen.StateCount, gen.SymbolCount, len(gen.Queries))
	return nil
}

// fetchRepo returns a local directory holding repo, cloning it into dest
// when it is not already a local directory.
func fetchRepo(ctx context.Context, repo, dest string) (string, error) {
	if info, err := os.Stat(repo); err == nil && info.IsDir() {
		return repo, nil
	}
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", repo, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git clone %s: %w: %s", repo, err, strings.TrimSpace(string(out)))
	}
	return dest, nil
}

// findGrammarFile looks for grammar.json, then grammar.yaml, in dir and
// falls back to the repository root one level up.
func findGrammarFile(dir string) (string, error) {
	for _, d := range []string{dir, filepath.Dir(dir)} {
		for _, name := range []string{"grammar.json", "grammar.yaml", "grammar.yml"} {
			p := filepath.Join(d, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("no grammar.json in %s", dir)
}
