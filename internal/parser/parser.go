package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"pdf-rag-qa/internal/models"
)

type LoaderOptions struct {
	// ExtraFormats enables the non-PDF readers in formats.go.
	ExtraFormats bool
}

type pageReader func(path string) ([]string, error)

// readerFor returns the page reader for a file extension, or nil when the
// file type is not loaded.
func readerFor(ext string, opts LoaderOptions) pageReader {
	if ext == ".pdf" {
		return parsePDF
	}
	if !opts.ExtraFormats {
		return nil
	}
	return extraReaders[ext]
}

// LoadDirectory reads every supported file in dir and returns one Page per
// document page, in file name order then page order. Files that fail to
// parse are logged and skipped. A missing directory yields no pages.
func LoadDirectory(dir string, opts LoaderOptions) ([]models.Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("dir", dir).Msg("Data directory does not exist")
			return nil, nil
		}
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var (
		pages []models.Page
		found int
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		read := readerFor(strings.ToLower(filepath.Ext(entry.Name())), opts)
		if read == nil {
			continue
		}
		found++
		path := filepath.Join(dir, entry.Name())
		filePages, err := LoadFile(path, read)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Error loading file, skipping")
			continue
		}
		pages = append(pages, filePages...)
		log.Info().Str("file", entry.Name()).Int("pages", len(filePages)).Msg("Loaded document")
	}
	log.Info().Int("files", found).Int("pages", len(pages)).Str("dir", dir).Msg("Loaded documents")
	return pages, nil
}

// LoadFile runs read on path and tags each page with the file's base name.
// A panic inside the reader is returned as an error.
func LoadFile(path string, read func(string) ([]string, error)) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parse %s: %v", filepath.Base(path), r)
		}
	}()

	texts, err := read(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	pages = make([]models.Page, 0, len(texts))
	for i, text := range texts {
		pages = append(pages, models.Page{
			Content:      text,
			Source:       path,
			DocumentName: name,
			PageNumber:   i + 1,
		})
	}
	return pages, nil
}

func parsePDF(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}
