package index

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/attr"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestIndex_AddGet(t *testing.T) {
	req := require.New(t)
	idx := New(testLogger())

	req.Nil(idx.Get("XYZ.png"))

	entry := &kv.Entry{Key: "XYZ.png", Metadata: model.StoredMetadata{FileName: "pic.PNG"}}
	idx.Add(entry)

	// Изменение исходной записи не влияет на индекс
	entry.Metadata.FileName = "changed"

	got := idx.Get("XYZ.png")
	req.NotNil(got)
	req.Equal("pic.PNG", got.Metadata.FileName)

	// Изменение возвращённой копии не влияет на индекс
	got.Metadata.FileName = "mutated"
	req.Equal("pic.PNG", idx.Get("XYZ.png").Metadata.FileName)
	req.Equal(1, idx.Count())
}

func TestIndex_BuildFromDir(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("id%d.png", i)
		path, err := attr.AttrFilePath(dir, key)
		req.NoError(err)
		req.NoError(attr.Write(path, &kv.Entry{Key: key}))
	}
	req.NoError(os.WriteFile(filepath.Join(dir, "bad.attr.json"), []byte("]"), 0o600))

	idx := New(testLogger())
	req.False(idx.IsReady())
	req.NoError(idx.BuildFromDir(dir))
	req.True(idx.IsReady())
	req.Equal(3, idx.Count())
	req.NotNil(idx.Get("id1.png"))
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	idx := New(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			idx.Add(&kv.Entry{Key: fmt.Sprintf("k%d", i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = idx.Get(fmt.Sprintf("k%d", i))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, idx.Count())
}
