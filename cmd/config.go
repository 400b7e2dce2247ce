package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"zgate/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage zgate configuration",
}

var configSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create or update configuration",
	Long: `Interactive setup to create or update the zgate configuration file.

Passwords are not stored. Supply one per invocation with --password,
$ZGATE_PASSWORD, or at the prompt.`,
	RunE: runConfigSetup,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetupCmd)
}

func runConfigSetup(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "zgate Configuration Setup")
	fmt.Fprintln(out, "=========================")
	fmt.Fprintln(out)

	profileName := prompt(out, reader, "Profile name", "default")

	host := prompt(out, reader, "z/OSMF host", "")
	if host == "" {
		return fmt.Errorf("host is required")
	}

	portStr := prompt(out, reader, "z/OSMF HTTPS port", strconv.Itoa(config.DefaultPort))
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port: %s", portStr)
	}

	user := prompt(out, reader, "Username", "")
	if user == "" {
		return fmt.Errorf("username is required")
	}

	hlq := prompt(out, reader, "High Level Qualifier (e.g., USERNAME)", strings.ToUpper(user))

	profile := &config.Profile{
		Host: host,
		Port: port,
		User: user,
		HLQ:  strings.ToUpper(hlq),
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = config.New()
		cfg.DefaultProfile = profileName
	}

	cfg.Profiles[profileName] = profile

	if len(cfg.Profiles) > 1 {
		setDefault := prompt(out, reader, fmt.Sprintf("Set '%s' as default profile? (y/n)", profileName), "y")
		if strings.ToLower(setDefault) == "y" {
			cfg.DefaultProfile = profileName
		}
	} else {
		cfg.DefaultProfile = profileName
	}

	if err := cfg.Save(cfgFile); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	path := cfgFile
	if path == "" {
		path = "~/" + config.DefaultConfigFile
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration saved successfully!")
	fmt.Fprintf(out, "Config file: %s\n", path)
	fmt.Fprintf(out, "Default profile: %s\n", cfg.DefaultProfile)

	return nil
}

func prompt(out io.Writer, reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
