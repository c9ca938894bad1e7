package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/frontdesk/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long:  "Generate the OpenAPI 3.1 document describing the frontdesk HTTP API.",
		Example: `  frontdesk openapi                    # print to stdout
  frontdesk openapi -o openapi.json    # write to file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(baseURL, outputFile)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL advertised in the document (default from lifecycle.registration_base_url)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}

func runOpenAPI(baseURL, outputFile string) error {
	if baseURL == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		baseURL = cfg.Lifecycle.RegistrationBaseURL
	}

	doc, err := openapi.Generate(baseURL, versionString())
	if err != nil {
		return fmt.Errorf("generate openapi: %w", err)
	}
	jsonBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode openapi: %w", err)
	}

	if outputFile == "" {
		fmt.Println(string(jsonBytes))
		return nil
	}
	if err := os.WriteFile(outputFile, append(jsonBytes, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", outputFile, err)
	}
	fmt.Printf("Wrote OpenAPI spec to %s\n", outputFile)
	return nil
}
