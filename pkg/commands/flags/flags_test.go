package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reident/reident/config"
	"github.com/reident/reident/render"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "root"}
	Config(root)
	child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)

	f := root.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, "c", f.Shorthand)
	assert.Equal(t, config.DefaultPath, f.DefValue)

	root.SetArgs([]string{"child", "-c", "/tmp/reident.toml"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "/tmp/reident.toml", MustString(child.Flags().GetString("config")))
}

func TestOutput(t *testing.T) {
	t.Parallel()

	t.Run("flag properties", func(t *testing.T) {
		t.Parallel()

		cmd := &cobra.Command{Use: "test"}
		Output(cmd)

		f := cmd.Flags().Lookup("output")
		require.NotNil(t, f)
		assert.Equal(t, "o", f.Shorthand)
		assert.Equal(t, "table", f.DefValue)
		assert.Contains(t, f.Usage, "json, yaml, toml")
	})

	t.Run("value retrieval", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			args    []string
			want    render.Format
			wantErr string
		}{
			{name: "default", want: render.FormatTable},
			{name: "shorthand", args: []string{"-o", "json"}, want: render.FormatJSON},
			{name: "format alias", args: []string{"--format", "toml"}, want: render.FormatTOML},
			{name: "invalid", args: []string{"-o", "xml"}, wantErr: `invalid output format "xml"`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
				Output(cmd)
				cmd.SetArgs(tt.args)
				require.NoError(t, cmd.Execute())

				got, err := Format(cmd)
				if tt.wantErr != "" {
					require.ErrorContains(t, err, tt.wantErr)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})
}

func TestSelection(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	Selection(cmd)

	cmd.SetArgs([]string{"--include", "hostname,machine-id", "--include", "cache-purge", "--exclude", "machine-id"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, []string{"hostname", "machine-id", "cache-purge"}, MustStringSlice(cmd.Flags().GetStringSlice("include")))
	assert.Equal(t, []string{"machine-id"}, MustStringSlice(cmd.Flags().GetStringSlice("exclude")))
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "test"}
	LogLevel(cmd)

	f := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, f)
	assert.Empty(t, f.DefValue)
}
