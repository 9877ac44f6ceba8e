package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"lattice-go/internal/container"
)

type inspectOptions struct {
	headerOnly  bool
	showKV      bool
	kvPrefix    string
	showTensors bool
}

func newInspectCmd() *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print container metadata and tensor directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.headerOnly, "header", false, "Only read and print the fixed header")
	cmd.Flags().BoolVar(&opts.showKV, "kv", true, "Print key-values")
	cmd.Flags().StringVar(&opts.kvPrefix, "kv-prefix", "", "Only print KV keys with this prefix")
	cmd.Flags().BoolVar(&opts.showTensors, "tensors", true, "Print tensor directory")
	return cmd
}

func inspect(cmd *cobra.Command, path string, opts *inspectOptions) error {
	if opts.headerOnly {
		h, err := container.ReadHeader(path)
		if err != nil {
			return fmt.Errorf("read container header: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "file=%s version=%d tensors=%d kv=%d\n", path, h.Version, h.TensorCount, h.KVCount)
		return nil
	}
	info, err := container.ReadFileInfo(path)
	if err != nil {
		return fmt.Errorf("read container info: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file=%s version=%d tensors=%d kv=%d\n", path, info.Version, info.TensorCount, info.KVCount)

	if opts.showKV {
		fmt.Fprintln(out, "kv:")
		keys := make([]string, 0, len(info.KeyValues))
		for k := range info.KeyValues {
			if strings.HasPrefix(k, opts.kvPrefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %v\n", k, info.KeyValues[k])
		}
	}

	if opts.showTensors {
		fmt.Fprintln(out, "tensors:")
		tensors := append([]container.TensorInfo(nil), info.Tensors...)
		sort.Slice(tensors, func(i, j int) bool {
			return tensors[i].Name < tensors[j].Name
		})
		for _, t := range tensors {
			fmt.Fprintf(out, "  %s dims=%v type=%d offset=%d\n", t.Name, t.Dimensions, t.Type, t.Offset)
		}
	}
	return nil
}
