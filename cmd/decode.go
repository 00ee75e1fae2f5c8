package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stegokey/backend-go/pkg/client"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Verify the encoded carriers, recover the key and decrypt the message",
	Example: `  stegokey decode --token-file out/token \
    --image out/encoded_image.png --video out/encoded_video.avi --audio out/encoded_audio.wav`,
	RunE: decode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	addTokenFlags(decodeCmd)
	addCarrierFlags(decodeCmd, "Encoded")
}

func addTokenFlags(cmd *cobra.Command) {
	cmd.Flags().String("token", "", "Token printed by encode")
	cmd.Flags().String("token-file", "", "File holding the token")
}

func readToken(cmd *cobra.Command) (string, error) {
	token, err := cmd.Flags().GetString("token")
	if err != nil {
		return "", err
	}
	file, err := cmd.Flags().GetString("token-file")
	if err != nil {
		return "", err
	}
	if token != "" && file != "" {
		return "", errors.New("must specify either --token or --token-file, not both")
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		token = string(b)
	}
	return strings.TrimSpace(token), nil
}

func decode(cmd *cobra.Command, args []string) error {
	token, err := readToken(cmd)
	if err != nil {
		return err
	}
	in, err := readCarriers(cmd)
	if err != nil {
		return err
	}

	c, err := newClient("")
	if err != nil {
		return err
	}

	start := time.Now()
	plaintext, err := c.Decode(cmd.Context(), token, in)
	if err != nil {
		if errors.Is(err, client.ErrIntegrityViolation) {
			logger.WithField("carrier", client.CarrierOf(err)).Error("carrier was modified after encoding")
		}
		return err
	}
	logger.WithField("duration", time.Since(start)).Info("decoded")
	fmt.Fprint(cmd.OutOrStdout(), plaintext)
	if !strings.HasSuffix(plaintext, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
