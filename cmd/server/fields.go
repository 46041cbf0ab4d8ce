package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/registry"
)

var fieldsEntityType string

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the filterable fields and their operators",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cfg.Registry.Path)
		if err != nil {
			return err
		}

		types := reg.EntityTypes()
		if fieldsEntityType != "" {
			entityType, err := domain.ParseEntityType(fieldsEntityType)
			if err != nil {
				return err
			}
			types = []domain.EntityType{entityType}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENTITY\tFIELD\tTYPE\tINDEXED\tOPERATORS")
		for _, entityType := range types {
			fields, err := reg.FieldsFor(entityType)
			if err != nil {
				return err
			}
			for _, f := range fields {
				ops := registry.OperatorsFor(f.Type)
				names := make([]string, len(ops))
				for i, op := range ops {
					names[i] = string(op.Operator)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", entityType, f.Name, f.Type, f.Indexed, strings.Join(names, ","))
			}
		}
		return w.Flush()
	},
}

func init() {
	fieldsCmd.Flags().StringVar(&fieldsEntityType, "type", "", "only print fields of this entity type")
	rootCmd.AddCommand(fieldsCmd)
}
