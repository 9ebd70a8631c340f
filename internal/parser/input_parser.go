// Package parser classifies translation inputs and resolves them to
// concrete sources.
package parser

import (
	"fmt"
	"os"
	"strings"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// ParseInput analyzes the input string and determines its type.
//
// Input type rules:
// - Starts with http:// or https:// → URL type
// - Ends with .pdf (local path) → LocalPDF type
// - Otherwise → error (invalid input)
func ParseInput(input string) (types.SourceType, error) {
	logger.Debug("parsing input", logger.String("input", input))

	if strings.TrimSpace(input) == "" {
		logger.Warn("parse input failed: empty input")
		return "", types.NewAppError(types.ErrInvalidInput, "input must not be empty", nil)
	}

	input = strings.TrimSpace(input)

	if isHTTPURL(input) {
		logger.Info("input identified as URL", logger.String("input", input))
		return types.SourceTypeURL, nil
	}

	if isLocalPDF(input) {
		logger.Info("input identified as local PDF file", logger.String("input", input))
		return types.SourceTypeLocalPDF, nil
	}

	logger.Warn("invalid input format", logger.String("input", input))
	return "", types.NewAppError(types.ErrInvalidInput,
		fmt.Sprintf("cannot handle input %q: expected a .pdf path or an http(s) URL", input), nil)
}

// Resolve classifies one input. Local paths are verified to exist;
// URL sources come back with an empty LocalPath for the downloader to
// fill in.
func Resolve(input string) (*types.SourceInfo, error) {
	sourceType, err := ParseInput(input)
	if err != nil {
		return nil, err
	}

	input = strings.TrimSpace(input)
	info := &types.SourceInfo{
		SourceType:  sourceType,
		OriginalRef: input,
	}

	if sourceType == types.SourceTypeLocalPDF {
		if err := statPDF(input); err != nil {
			return nil, err
		}
		info.LocalPath = input
	}
	return info, nil
}

// ResolveAll classifies every input. Missing local files are collected
// so the error names all of them at once instead of failing one by one.
func ResolveAll(inputs []string) ([]*types.SourceInfo, error) {
	if len(inputs) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "no inputs given", nil)
	}

	resolved := make([]*types.SourceInfo, 0, len(inputs))
	var missing []string

	for _, input := range inputs {
		info, err := Resolve(input)
		if err != nil {
			if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrFileNotFound {
				missing = append(missing, strings.TrimSpace(input))
				continue
			}
			return nil, err
		}
		resolved = append(resolved, info)
	}

	if len(missing) > 0 {
		return nil, types.NewAppError(types.ErrFileNotFound,
			fmt.Sprintf("input files not found: %s", strings.Join(missing, ", ")), nil)
	}
	return resolved, nil
}

// isHTTPURL checks if the input is an http or https URL.
func isHTTPURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// isLocalPDF checks if the input is a local PDF file path.
// A valid local PDF path ends with ".pdf" (case-insensitive).
func isLocalPDF(input string) bool {
	return strings.HasSuffix(strings.ToLower(input), ".pdf")
}

// statPDF verifies a local path exists and is a regular file.
func statPDF(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewAppError(types.ErrFileNotFound,
				fmt.Sprintf("file not found: %s", path), err)
		}
		return types.NewAppError(types.ErrInvalidInput,
			fmt.Sprintf("cannot access %s", path), err)
	}
	if fi.IsDir() {
		return types.NewAppError(types.ErrInvalidInput,
			fmt.Sprintf("%s is a directory, not a PDF file", path), nil)
	}
	return nil
}
