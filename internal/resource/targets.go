package resource

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Errors returned by ReadTargetsFromFile
var (
	ErrFileNotFound   = errors.New("targets file not found")
	ErrFilePermission = errors.New("permission denied reading targets file")
	ErrFileEmpty      = errors.New("targets file is empty or contains no targets")
	ErrReadingFile    = errors.New("error reading targets file")
)

// ReadTargetsFromFile reads one target per line. Blank lines and lines
// starting with '#' are skipped; duplicates are dropped, keeping first-seen order.
func ReadTargetsFromFile(filePath string, logger zerolog.Logger) ([]string, error) {
	fileLogger := logger.With().Str("file_path", filePath).Logger()

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("error checking file %s: %w", filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("targets path is a directory, not a file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrFilePermission, filePath)
		}
		return nil, fmt.Errorf("%w: %s (cause: %v)", ErrReadingFile, filePath, err)
	}
	defer file.Close()

	var targets []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	totalLinesRead := 0
	for scanner.Scan() {
		totalLinesRead++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			fileLogger.Debug().Int("line_number", totalLinesRead).Str("target", line).Msg("Skipping duplicate target")
			continue
		}
		seen[line] = struct{}{}
		targets = append(targets, line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, fmt.Errorf("%w: %s (scan error: %v)", ErrReadingFile, filePath, scanErr)
	}

	fileLogger.Info().Int("total_lines_read", totalLinesRead).Int("targets", len(targets)).Msg("Finished reading targets file")
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileEmpty, filePath)
	}
	return targets, nil
}
