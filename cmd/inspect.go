package cmd

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stegokey/backend-go/internal/crypto"
	"github.com/stegokey/backend-go/pkg/envelope"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the envelope inside a token without touching any carrier",
	RunE:  inspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	addTokenFlags(inspectCmd)
	inspectCmd.Flags().String("format", "json", "Output format: json, yaml or toml")
}

type envelopeView struct {
	Algorithm string            `json:"alg" yaml:"alg" toml:"alg"`
	Message   string            `json:"message" yaml:"message" toml:"message"`
	Hashes    map[string]string `json:"hashes" yaml:"hashes" toml:"hashes"`
}

func viewOf(env *envelope.Envelope) envelopeView {
	alg := env.Algorithm
	if alg == "" {
		alg = crypto.DefaultAlgorithm
	}
	return envelopeView{
		Algorithm: alg,
		Message:   env.Message,
		Hashes: map[string]string{
			"image": env.Hashes.Image,
			"video": env.Hashes.Video,
			"audio": env.Hashes.Audio,
		},
	}
}

func renderEnvelope(w io.Writer, env *envelope.Envelope, format string) error {
	v := viewOf(env)
	switch format {
	case "json":
		b, err := json.MarshalIndent(v, "", "\t")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(v)
	}
	return fmt.Errorf("unknown format %q", format)
}

func inspect(cmd *cobra.Command, args []string) error {
	token, err := readToken(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	env, err := envelope.Unpack(token)
	if err != nil {
		return err
	}
	return renderEnvelope(cmd.OutOrStdout(), env, format)
}
