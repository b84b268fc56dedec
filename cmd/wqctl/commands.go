package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
)

func newUnitsCommand() *cobra.Command {
	var (
		field  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "units",
		Short: "List unit registries and accepted ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			units, err := usecase.NewDescribeUnitsUseCase().Execute(cmd.Context(), field)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), units)
			}
			return writeUnitsTable(cmd.OutOrStdout(), units, field == "")
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "limit output to one field (temperature, conductivity, ph)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func writeUnitsTable(out io.Writer, units *dto.UnitsDTO, withPH bool) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tKEY\tSYMBOLS\tMIN\tMAX\tCANONICAL")
	for _, family := range units.Families {
		for _, unit := range family.Units {
			canonical := ""
			if unit.Canonical {
				canonical = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				family.Field,
				unit.Key,
				strings.Join(unit.Symbols, ","),
				formatNumber(unit.Min),
				formatNumber(unit.Max),
				canonical,
			)
		}
	}
	if withPH || len(units.Families) == 0 {
		fmt.Fprintf(tw, "ph\t-\t-\t%s\t%s\t\n", formatNumber(units.PH.Min), formatNumber(units.PH.Max))
	}
	return tw.Flush()
}

func newConvertCommand() *cobra.Command {
	var (
		from   string
		to     string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "convert <field> <value>",
		Short: "Validate a value and convert it to another unit",
		Example: `  wqctl convert temperature 77 --from f --to c
  wqctl convert temperature -5 --from c
  wqctl convert conductivity 1280 --from ppm`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := usecase.NewConvertMeasurementUseCase().Execute(cmd.Context(), usecase.ConvertMeasurementCommand{
				Field: args[0],
				Value: args[1],
				From:  from,
				To:    to,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s %s\n",
				formatNumber(result.Value), result.From, formatNumber(result.Result), result.To)
			return err
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "unit of the value (field default when empty)")
	cmd.Flags().StringVar(&to, "to", "", "target unit (canonical when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newValidateCommand() *cobra.Command {
	var skew time.Duration

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a readings batch without storing it",
		Long: `Reads a batch as {"readings": [...]} or a bare JSON array from a file or stdin
and reports every rejected field. Exits with status 1 when any reading is rejected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			inputs, err := decodeBatch(in)
			if err != nil {
				return err
			}

			return validateBatch(cmd.OutOrStdout(), cmd.ErrOrStderr(), service.NewReadingValidator(skew), inputs)
		},
	}

	cmd.Flags().DurationVar(&skew, "max-clock-skew", 2*time.Minute, "tolerated sensor clock lead")
	return cmd
}

func decodeBatch(r io.Reader) ([]dto.ReadingInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	if trimmed[0] == '[' {
		var inputs []dto.ReadingInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, fmt.Errorf("failed to decode readings: %w", err)
		}
		return inputs, nil
	}

	var req dto.IngestReadingsRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("failed to decode readings: %w", err)
	}
	return req.Readings, nil
}

func validateBatch(out, errOut io.Writer, validator *service.ReadingValidator, inputs []dto.ReadingInput) error {
	if len(inputs) == 0 {
		return usecase.ErrEmptyBatch
	}

	raws := make([]service.RawReading, len(inputs))
	for i, input := range inputs {
		raws[i] = input.ToRaw()
	}

	readings, failures := validator.ParseBatch(raws)
	for _, reading := range readings {
		fmt.Fprintf(out, "ok %s temperature=%s k conductivity=%s spm ph=%s\n",
			reading.SensorID(),
			formatNumber(reading.Temperature().AsKelvin()),
			formatNumber(reading.Conductivity().AsSiemensPerMeter()),
			formatNumber(reading.PH().Value()),
		)
	}

	if len(failures) == 0 {
		fmt.Fprintf(out, "%d reading(s) valid\n", len(readings))
		return nil
	}

	indexes := make([]int, 0, len(failures))
	for i := range failures {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		printError(errOut, failures[i])
	}

	return fmt.Errorf("%d of %d reading(s) rejected", len(failures), len(inputs))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
