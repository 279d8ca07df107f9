package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

const (
	prismFTPHost = "prism.oregonstate.edu:21"
	prismDataDir = "/daily"
)

// PRISMFetcher downloads daily PRISM rasters over anonymous FTP and unpacks
// the .bil/.hdr pair into a local directory named by date, matching what
// ReadPRISMGrid expects.
type PRISMFetcher struct {
	host string
	dir  string
}

func NewPRISMFetcher(dir string) *PRISMFetcher {
	return &PRISMFetcher{host: prismFTPHost, dir: dir}
}

// Fetch retrieves one day of one variable ("tmean" or "ppt") and returns the
// path to the extracted .bil file.
func (f *PRISMFetcher) Fetch(variable string, date time.Time) (string, error) {
	conn, err := ftp.Dial(f.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return "", fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return "", fmt.Errorf("ftp login: %w", err)
	}

	remote := fmt.Sprintf("%s/%s/%d/PRISM_%s_stable_4kmD2_%s_bil.zip",
		prismDataDir, variable, date.Year(), variable, date.Format("20060102"))

	resp, err := conn.Retr(remote)
	if err != nil {
		return "", fmt.Errorf("ftp retr %s: %w", remote, err)
	}
	defer resp.Close()

	payload, err := io.ReadAll(resp)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", remote, err)
	}

	return f.extract(payload, date)
}

// extract writes the .bil and .hdr entries from a PRISM archive as
// <YYYY-MM-DD>.bil/.hdr.
func (f *PRISMFetcher) extract(payload []byte, date time.Time) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", err
	}

	stem := date.Format("2006-01-02")
	var bilPath string
	for _, entry := range zr.File {
		ext := strings.ToLower(filepath.Ext(entry.Name))
		if ext != ".bil" && ext != ".hdr" {
			continue
		}

		dst := filepath.Join(f.dir, stem+ext)
		if err := extractEntry(entry, dst); err != nil {
			return "", fmt.Errorf("extract %s: %w", entry.Name, err)
		}
		if ext == ".bil" {
			bilPath = dst
		}
	}

	if bilPath == "" {
		return "", fmt.Errorf("archive for %s has no .bil entry", stem)
	}
	return bilPath, nil
}

func extractEntry(entry *zip.File, dst string) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
