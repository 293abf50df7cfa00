// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"wavviz/internal/build"
	"wavviz/internal/config"

	"github.com/spf13/cobra"
)

// Command names stored in config.Config.Command.
const (
	CommandPlay    = "play"
	CommandDevices = "devices"
)

// ErrNoCommand is returned when the root command ran without a subcommand;
// cobra has already printed the help text.
var ErrNoCommand = errors.New("no command given")

// ParseArgs builds the configuration from the config file, the environment
// and the command line, in increasing order of precedence.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	var (
		configPath string
		verbose    bool
		options    *config.Config

		mode, backend, fftWindow, wsAddr, udpAddr string
		device                                     int
		headless, tuiList                          bool
	)

	// load reads the config file and overlays the flags the user set.
	load := func(cmd *cobra.Command) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if verbose {
			cfg.LogLevel = "debug"
		}
		if flags.Changed("mode") {
			cfg.Mode = mode
		}
		if flags.Changed("backend") {
			cfg.Audio.Backend = backend
		}
		if flags.Changed("device") {
			cfg.Audio.OutputDevice = device
		}
		if flags.Changed("fft-window") {
			cfg.Analysis.FFTWindow = fftWindow
		}
		if flags.Changed("ws") {
			cfg.Transport.WSEnabled = true
			cfg.Transport.WSAddress = wsAddr
		}
		if flags.Changed("udp") {
			cfg.Transport.UDPEnabled = true
			cfg.Transport.UDPTargetAddress = udpAddr
		}
		cfg.Headless = headless
		cfg.TUIList = tuiList
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.VersionString(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return err
			}
			return ErrNoCommand
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("Config file (default ./%s if present)", config.DefaultConfigFile))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	playCmd := &cobra.Command{
		Use:   "play [file.wav]",
		Short: "Play a WAV file and visualize it",
		Long: "Play a WAV file and visualize it as spectrum bars or a scrolling waveform.\n" +
			"Without a file argument the path is asked for on standard input.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := ValidatePath(args[0]); err != nil {
					return err
				}
			}
			if err := load(cmd); err != nil {
				return err
			}
			options.Command = CommandPlay
			if len(args) == 1 {
				options.File = args[0]
			}
			return nil
		},
	}
	playCmd.Flags().StringVarP(&mode, "mode", "m", config.DefaultMode,
		"Visualization: bars or wave")
	playCmd.Flags().StringVarP(&backend, "backend", "b", config.DefaultBackend,
		"Audio output: portaudio, oto or none")
	playCmd.Flags().IntVarP(&device, "device", "d", config.DefaultOutputDevice,
		"PortAudio output device ID (-1 for default). Use 'devices' to list them.")
	playCmd.Flags().StringVar(&fftWindow, "fft-window", config.DefaultFFTWindow,
		"Window function applied before the FFT (rectangular, hann, hamming, blackman, ...)")
	playCmd.Flags().StringVar(&wsAddr, "ws", config.DefaultWSAddress,
		"Serve frames as JSON over WebSocket on this address")
	playCmd.Flags().StringVar(&udpAddr, "udp", config.DefaultUDPTargetAddress,
		"Send frame values as UDP packets to this address")
	playCmd.Flags().BoolVar(&headless, "headless", false,
		"Do not draw in the terminal (frames still go to --ws/--udp and the log)")
	rootCmd.AddCommand(playCmd)

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List available audio output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd); err != nil {
				return err
			}
			options.Command = CommandDevices
			return nil
		},
	}
	devicesCmd.Flags().BoolVar(&tuiList, "tui", false, "Browse devices interactively")
	rootCmd.AddCommand(devicesCmd)

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	// --help and --version run no command.
	return options, nil
}
