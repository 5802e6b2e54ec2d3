package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/deepguard/internal/model"
)

// FileAnalyzer analyzes one local media file end to end
type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, path string) (model.Record, error)
}

// FileJob represents a local file analysis job
type FileJob struct {
	Index    int
	Path     string
	Analyzer FileAnalyzer
}

// Execute executes the file job
func (j *FileJob) Execute(ctx context.Context) Result {
	record, err := j.Analyzer.AnalyzeFile(ctx, j.Path)
	if err != nil {
		return &FileResult{Index: j.Index, Path: j.Path, Error: err}
	}
	return &FileResult{Index: j.Index, Path: j.Path, Record: &record}
}

// FileResult represents the result of a file job
type FileResult struct {
	Index  int
	Path   string
	Record *model.Record
	Error  error
}

// GetError returns the error from the file result
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor processes multiple files concurrently
type BatchProcessor struct {
	analyzer    FileAnalyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer FileAnalyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessFiles processes files concurrently. Results keep the input order.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*FileResult {
	if len(paths) == 0 {
		return []*FileResult{}
	}

	pool := NewPoolContext(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		pool.Submit(&FileJob{
			Index:    i,
			Path:     path,
			Analyzer: b.analyzer,
		})
	}

	results := pool.Wait()

	fileResults := make([]*FileResult, len(paths))
	for _, result := range results {
		if fr, ok := result.(*FileResult); ok {
			fileResults[fr.Index] = fr
		}
	}

	// Jobs dropped by cancellation or lost to a panic still get a row
	for i, fr := range fileResults {
		if fr != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("analysis did not complete")
		}
		fileResults[i] = &FileResult{Index: i, Path: paths[i], Error: err}
	}

	return fileResults
}

// ProcessSource analyzes a directory of media files, or a list file with one path per line
func (b *BatchProcessor) ProcessSource(ctx context.Context, source string) ([]*FileResult, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	var paths []string
	if info.IsDir() {
		paths, err = CollectMediaFiles(source)
	} else {
		paths, err = ReadPathsFromFile(source)
	}
	if err != nil {
		return nil, err
	}

	return b.ProcessFiles(ctx, paths), nil
}

// mediaExtensions are the file extensions picked up from a directory
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true,
	".mp4": true, ".mov": true, ".m4v": true,
	".wav": true, ".wave": true,
}

// CollectMediaFiles lists media files directly inside dir, sorted by name
func CollectMediaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if mediaExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	return paths, nil
}

// ReadPathsFromFile reads file paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
