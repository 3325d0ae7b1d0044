// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Command falconjit is a development CLI around the compiler: compile a
// source file and report diagnostics, dump its token stream or parsed
// tree, or run its DSP harness against a literal test block. This is new
// ambient surface the teacher itself never had (falcon/main.go is a
// three-line `compile.CompileTheWorld` call); it is built with
// github.com/spf13/cobra + pflag + viper per SPEC_FULL.md §4, the same
// shape the pack's other CLI-facing repos use.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	falconjit "github.com/hisesub022/falconjit"
	"github.com/hisesub022/falconjit/dsp"
	"github.com/hisesub022/falconjit/internal/lang"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "falconjit",
		Short: "Compile and exercise expression-JIT DSP sources",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
			initConfig()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().Bool("safe", true, "default safe-buffer-access mode when the source sets neither macro")
	_ = viper.BindPFlag("safe", root.PersistentFlags().Lookup("safe"))

	root.AddCommand(newCompileCmd(), newRunCmd(), newTokensCmd(), newASTCmd())
	return root
}

func initConfig() {
	viper.SetConfigName(".falconjit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetDefault("safe", true)
	viper.SetDefault("sampleRate", 44100.0)
	viper.SetDefault("blockSize", 512)
	_ = viper.ReadInConfig() // absence of a config file is not an error
}

func readSourceArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one source file argument")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a source file and report diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSourceArg(args)
			if err != nil {
				return err
			}
			c := falconjit.Compile(source, falconjit.WithSafeBufferAccess(viper.GetBool("safe")))
			if !c.OK() {
				fmt.Println(c.ErrorMessage())
				return fmt.Errorf("compile failed")
			}
			sc, err := c.BuildScope()
			if err != nil {
				return err
			}
			defer sc.Close()
			log.Info().Int("globals", sc.GlobalCount()).Msg("compiled OK")
			return nil
		},
	}
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <file>",
		Short: "Print the token stream for a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSourceArg(args)
			if err != nil {
				return err
			}
			preprocessed, _, err := lang.Preprocess(source)
			if err != nil {
				return err
			}
			lx := lang.NewLexer(preprocessed)
			for {
				tok := lx.Next()
				fmt.Printf("%-20s %q (offset %d)\n", tok.Kind, tok.Lexeme, tok.Offset)
				if tok.Kind == lang.TK_EOF {
					break
				}
			}
			return nil
		},
	}
}

func newASTCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ast <file>",
		Short: "Parse a source file and print its top-level structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSourceArg(args)
			if err != nil {
				return err
			}
			preprocessed, flags, err := lang.Preprocess(source)
			if err != nil {
				return err
			}
			prog, err := lang.ParseProgram(preprocessed, flags)
			if err != nil {
				return err
			}
			for _, g := range prog.Globals {
				fmt.Printf("global %v %s (const=%v)\n", g.Kind, g.Name, g.Const)
			}
			for _, fn := range prog.Funcs {
				fmt.Printf("func %v %s(%d params), %d statements\n", fn.Ret, fn.Name, len(fn.Params), len(fn.Body))
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var sampleRate float64
	var blockSize int

	cmd := &cobra.Command{
		Use:   "run <file> <samples...>",
		Short: "Compile a source file, drive its DSP harness over literal sample inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// the flag defaults are read before initConfig runs, so
			// config/defaults are applied here when a flag is not set.
			if !cmd.Flags().Changed("sample-rate") {
				sampleRate = viper.GetFloat64("sampleRate")
			}
			if !cmd.Flags().Changed("block-size") {
				blockSize = viper.GetInt("blockSize")
			}
			source, err := readSourceArg(args[:1])
			if err != nil {
				return err
			}
			c := falconjit.Compile(source, falconjit.WithSafeBufferAccess(viper.GetBool("safe")))
			if !c.OK() {
				fmt.Println(c.ErrorMessage())
				return fmt.Errorf("compile failed")
			}
			sc, err := c.BuildScope()
			if err != nil {
				return err
			}
			defer sc.Close()

			h := dsp.NewHarness(sc)
			if !h.Ready() {
				return fmt.Errorf("source does not expose init/prepareToPlay/process")
			}
			h.OnOverflow(func(name string, index int) {
				log.Warn().Str("buffer", name).Int("index", index).Msg("overflow sentinel breached")
			})
			h.Init()
			h.PrepareToPlay(sampleRate, blockSize)

			buf := make([]float32, 0, len(args)-1)
			for _, a := range args[1:] {
				var f float32
				if _, err := fmt.Sscanf(a, "%g", &f); err != nil {
					return fmt.Errorf("invalid sample %q: %w", a, err)
				}
				buf = append(buf, f)
			}
			h.ProcessBlock(buf)
			for _, v := range buf {
				fmt.Println(v)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&sampleRate, "sample-rate", viper.GetFloat64("sampleRate"), "sample rate passed to prepareToPlay")
	cmd.Flags().IntVar(&blockSize, "block-size", viper.GetInt("blockSize"), "block size passed to prepareToPlay")
	return cmd
}
