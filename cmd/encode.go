package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stegokey/backend-go/pkg/carrier"
	"github.com/stegokey/backend-go/pkg/client"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encrypt a message and hide its key in an image, a video and an audio clip",
	Example: `  stegokey encode --text "hello world" \
    --image cover.png --video clip.avi --audio voice.wav --out-dir out/`,
	RunE: encode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().String("file", "", "File whose contents to encrypt")
	encodeCmd.Flags().String("text", "", "Text to encrypt")
	encodeCmd.Flags().String("out-dir", ".", "Directory the encoded carriers are written to")
	encodeCmd.Flags().String("token-file", "", "Also write the token to this file")
	encodeCmd.Flags().String("cipher", "", "Cipher for the message (default cipher.algorithm)")
	addCarrierFlags(encodeCmd, "Cover")
}

func addCarrierFlags(cmd *cobra.Command, role string) {
	for _, k := range carrier.Kinds {
		cmd.Flags().String(k.String(), "", fmt.Sprintf("%s %s file", role, k))
	}
}

// readCarriers loads the files named by the carrier flags. Unset flags
// leave the carrier empty so the client reports which one is missing.
func readCarriers(cmd *cobra.Command) (client.Carriers, error) {
	var in client.Carriers
	for _, k := range carrier.Kinds {
		path, err := cmd.Flags().GetString(k.String())
		if err != nil {
			return in, err
		}
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return in, fmt.Errorf("read %s carrier: %w", k, err)
		}
		in.Set(k, b)
	}
	return in, nil
}

func newClient(cipher string) (*client.Client, error) {
	if cipher == "" {
		cipher = cfg.Cipher.Algorithm
	}
	return client.NewClient(client.ClientOptions{
		Cipher:        cipher,
		VideoEncoders: cfg.Video.Encoders,
		Logger:        logger,
	})
}

func readPlaintext(cmd *cobra.Command) (string, error) {
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return "", err
	}
	text, err := cmd.Flags().GetString("text")
	if err != nil {
		return "", err
	}

	switch {
	case file == "" && text == "":
		return "", errors.New("must specify either --file or --text")
	case file != "" && text != "":
		return "", errors.New("must specify either --file or --text, not both")
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return text, nil
}

func encode(cmd *cobra.Command, args []string) error {
	plaintext, err := readPlaintext(cmd)
	if err != nil {
		return err
	}
	in, err := readCarriers(cmd)
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("out-dir")
	tokenFile, _ := cmd.Flags().GetString("token-file")
	cipher, _ := cmd.Flags().GetString("cipher")

	c, err := newClient(cipher)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := c.Encode(cmd.Context(), plaintext, in)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, k := range carrier.Kinds {
		path := filepath.Join(outDir, "encoded_"+k.String()+c.Codec(k).Ext())
		b := res.Carriers.Get(k)
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return fmt.Errorf("write encoded %s: %w", k, err)
		}
		digest, _ := res.Envelope.Digest(k.String())
		logger.WithFields(logrus.Fields{
			"carrier": k,
			"path":    path,
			"size":    len(b),
			"digest":  digest,
		}).Info("wrote encoded carrier")
	}
	if tokenFile != "" {
		if err := os.WriteFile(tokenFile, []byte(res.Token+"\n"), 0o600); err != nil {
			return err
		}
	}

	logger.WithField("duration", time.Since(start)).Info("encoded")
	fmt.Fprintln(cmd.OutOrStdout(), res.Token)
	return nil
}
