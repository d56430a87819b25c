package attr

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
)

func testEntry(key string) *kv.Entry {
	return &kv.Entry{
		Key:   key,
		Value: "",
		Metadata: model.StoredMetadata{
			TimeStamp: 1700000000123,
			ListType:  model.ListTypeNone,
			Label:     model.LabelNone,
			FileName:  "pic.PNG",
			FileSize:  1024,
		},
	}
}

// TestWriteAndRead проверяет запись и чтение attr.json.
func TestWriteAndRead(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	path, err := AttrFilePath(dir, "XYZ.png")
	req.NoError(err)
	req.Equal(filepath.Join(dir, KeyDigest("XYZ.png")+AttrSuffix), path)

	req.NoError(Write(path, testEntry("XYZ.png")))

	got, err := Read(path)
	req.NoError(err)
	req.Equal(*testEntry("XYZ.png"), *got)

	// Временные файлы не остаются после записи
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	req.NoError(err)
	req.Empty(matches)
}

// TestWrite_JSONFieldNames проверяет имена полей метаданных на диске.
func TestWrite_JSONFieldNames(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "k.attr.json")
	req.NoError(Write(path, testEntry("k")))

	data, err := os.ReadFile(path)
	req.NoError(err)
	for _, field := range []string{`"TimeStamp"`, `"ListType"`, `"Label"`, `"liked"`, `"fileName"`, `"fileSize"`} {
		req.Contains(string(data), field)
	}
}

// TestWrite_TooLarge проверяет ограничение размера attr.json.
func TestWrite_TooLarge(t *testing.T) {
	entry := testEntry("big")
	entry.Metadata.FileName = strings.Repeat("x", maxAttrFileSize)

	err := Write(filepath.Join(t.TempDir(), "big.attr.json"), entry)
	require.Error(t, err)
}

// TestRead_Missing проверяет ошибку для отсутствующего файла.
func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none.attr.json"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

// TestAttrFilePath_FixedLength проверяет, что имя файла не зависит
// от длины и содержимого ключа.
func TestAttrFilePath_FixedLength(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	keys := []string{
		"AgACAgIAAxkDAAIB.png",
		"AgACAgIAAxkDAAIB." + strings.Repeat("n", 300),
		"../etc/passwd",
		`a\b`,
	}
	for _, key := range keys {
		path, err := AttrFilePath(dir, key)
		req.NoError(err, key)
		req.Equal(dir, filepath.Dir(path), key)
		req.Len(filepath.Base(path), 64+len(AttrSuffix), key)
	}

	_, err := AttrFilePath(dir, "")
	req.ErrorIs(err, kv.ErrEmptyKey)
}

// TestWrite_LongFileName проверяет запись метаданных с длинным именем файла.
func TestWrite_LongFileName(t *testing.T) {
	req := require.New(t)
	entry := testEntry("XYZ.png")
	entry.Metadata.FileName = strings.Repeat("x", 4000) + ".png"

	path, err := AttrFilePath(t.TempDir(), entry.Key)
	req.NoError(err)
	req.NoError(Write(path, entry))

	got, err := Read(path)
	req.NoError(err)
	req.Equal(entry.Metadata.FileName, got.Metadata.FileName)
}

// TestScanDir проверяет сканирование с пропуском невалидных файлов.
func TestScanDir(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	for _, key := range []string{"a.png", "b.jpg"} {
		path, err := AttrFilePath(dir, key)
		req.NoError(err)
		req.NoError(Write(path, testEntry(key)))
	}
	req.NoError(os.WriteFile(filepath.Join(dir, "broken.attr.json"), []byte("{not json"), 0o600))
	req.NoError(os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))

	entries, skipped, err := ScanDir(dir)
	req.NoError(err)
	req.Len(entries, 2)
	req.Len(skipped, 1)
	req.True(IsAttrFile(skipped[0]))
}
