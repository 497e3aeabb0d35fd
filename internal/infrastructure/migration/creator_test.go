package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/freightdesk/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add delay index", "add_delay_index"},
		{"Add-Delay-Index", "add_delay_index"},
		{"ADD_DELAY_INDEX", "add_delay_index"},
		{"add__delay__index", "add_delay_index"},
		{"Add Invoices 123", "add_invoices_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add delay index", "Index delays by recorded_at")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, "000001_add_delay_index", first.Name)
	assert.True(t, strings.HasSuffix(first.UpPath, ".up.sql"))
	assert.True(t, strings.HasSuffix(first.DownPath, ".down.sql"))

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Index delays by recorded_at")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback of 000001_add_delay_index")

	second, err := CreateMigration(dir, "add invoice notes", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "init")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_create_invoices.up.sql":    {Data: []byte("--")},
		"000002_create_invoices.down.sql":  {Data: []byte("--")},
		"000001_create_shipments.up.sql":   {Data: []byte("--")},
		"000001_create_shipments.down.sql": {Data: []byte("--")},
		"README.md":                        {Data: []byte("docs")},
		"subdir.up.sql/file":               {Data: []byte("--")},
	}

	got, err := ListMigrations(fsys)

	require.NoError(t, err)
	assert.Equal(t, []string{"000001_create_shipments", "000002_create_invoices"}, got)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	got, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVerify(t *testing.T) {
	t.Run("accepts complete pairs", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000001_init.up.sql":   {Data: []byte("--")},
			"000001_init.down.sql": {Data: []byte("--")},
		}
		assert.NoError(t, Verify(fsys))
	})

	t.Run("reports a missing down file", func(t *testing.T) {
		fsys := fstest.MapFS{"000001_init.up.sql": {Data: []byte("--")}}
		err := Verify(fsys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "000001_init has no down file")
	})

	t.Run("reports a missing version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"init.up.sql":   {Data: []byte("--")},
			"init.down.sql": {Data: []byte("--")},
		}
		assert.Error(t, Verify(fsys))
	})
}

func TestEmbeddedSchema(t *testing.T) {
	require.NoError(t, Verify(migrations.FS))

	got, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_create_shipments",
		"000002_create_invoices",
		"000003_create_outbox_events",
	}, got)
}
