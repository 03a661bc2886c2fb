package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/entity"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSchemaCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [type...]",
		Short: "Print the field layout of entity types and the registry fingerprint",
		Long: `Print the flattened field layout of every field group of the registered entity types:
dirty bit index, name, codec, bit width and the schema declaring the field.
Server and clients can only talk when their registry fingerprints are equal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSchemas(cmd.OutOrStdout(), args)
		},
	}
}

func printSchemas(out io.Writer, typeNames []string) error {
	descs := entity.RegisteredEntityTypes()
	if len(typeNames) > 0 {
		descs = descs[:0:0]
		printed := common.StringSet{}
		for _, name := range typeNames {
			if printed.Contains(name) {
				continue
			}
			printed.Add(name)
			desc := entity.GetEntityTypeDesc(name)
			if desc == nil {
				return errors.Errorf("unknown entity type %q", name)
			}
			descs = append(descs, desc)
		}
	}

	fmt.Fprintf(out, "registry fingerprint %016x\n", entity.RegistryFingerprint())
	for _, desc := range descs {
		fmt.Fprintf(out, "\n%s fingerprint=%016x destroy_with_owner=%v\n", desc.Name(), desc.Fingerprint(), desc.DestroyWithOwner())
		for i := 0; i < desc.NumGroups(); i++ {
			g := desc.Group(i)
			fmt.Fprintf(out, "  group %d %s %s\n", i, g.Name(), g.Direction())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, fd := range g.Fields() {
				width := "var"
				if bits := fd.Codec.BitWidth(); bits >= 0 {
					width = fmt.Sprint(bits)
				}
				flags := ""
				if fd.InitialOnly {
					flags = "initial-only"
				}
				fmt.Fprintf(tw, "    %d\t%s\t%s\t%s\t%s\t%s\n", fd.Index, fd.Name, fd.Codec, width, fd.DeclaredBy, flags)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}
