package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestBuildPublicID(t *testing.T) {
	require.Equal(t, "aula/2025-1/123_45 BIS 1/6. Informes/123_45 01-03-2025 Informe",
		BuildPublicID("aula/2025-1/123_45 BIS 1/6. Informes", "123_45 01-03-2025 Informe"))
	require.Equal(t, "a_b_c", BuildPublicID("", " a/b?c "))
}

func TestFullFolderIsRootRelative(t *testing.T) {
	drive, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", RootFolder: "/aula-virtual/"}, zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, "aula-virtual", drive.fullFolder(""))
	require.Equal(t, "aula-virtual/2025-1/123_45", drive.fullFolder("2025-1//123_45/"))
}
