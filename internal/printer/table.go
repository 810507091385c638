package printer

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slok/comfylaunch/internal/model"
)

// TablePrinter prints launcher information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintHistory prints task history records in a table format.
func (t *TablePrinter) PrintHistory(records []model.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTASK\tSTATUS\tDURATION\tSTARTED\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Name,
			r.Status,
			FormatDuration(r.Duration()),
			Ago(time.Now(), r.StartedAt),
			firstLine(r.Error),
		)
	}

	return nil
}

// PrintVersions prints backend versions in a table format, the active one marked.
func (t *TablePrinter) PrintVersions(versions []model.Version) error {
	if len(versions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "\tREF\tKIND\tCOMMIT\tDATE\tSUBJECT")
	for _, v := range versions {
		current := ""
		if v.Current {
			current = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", current, v.Ref, v.Kind, shortCommit(v.Commit), FormatDate(v.Date), v.Subject)
	}

	return nil
}

// PrintNodes prints custom nodes in a table format.
func (t *TablePrinter) PrintNodes(nodes []model.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tENABLED\tCOMMIT\tUPSTREAM\tREMOTE")
	for _, n := range nodes {
		enabled := "yes"
		if n.Disabled {
			enabled = "no"
		}
		upstream := n.Upstream
		if upstream == "" {
			upstream = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.Name, enabled, shortCommit(n.Commit), upstream, n.Remote)
	}

	return nil
}

// PrintSettings prints the settings as aligned key/value pairs, secrets masked.
func (t *TablePrinter) PrintSettings(s model.Settings) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	rows := [][2]string{
		{"install_dir", s.InstallDir},
		{"python_path", s.PythonPath},
		{"listen_addr", s.ListenAddr},
		{"port", fmt.Sprint(s.Port)},
		{"unet_precision", string(s.UNetPrecision)},
		{"vae_precision", string(s.VAEPrecision)},
		{"text_encoder_precision", string(s.TextEncoderPrecision)},
		{"vram_mode", string(s.VRAMMode)},
		{"disable_xformers", fmt.Sprint(s.DisableXFormers)},
		{"use_pytorch_cross_attention", fmt.Sprint(s.UsePyTorchCrossAttention)},
		{"fast_mode", fmt.Sprint(s.FastMode)},
		{"auto_open_browser", fmt.Sprint(s.AutoOpenBrowser)},
		{"extra_args", s.ExtraArgs},
		{"diagnosis_api_key", MaskSecret(s.DiagnosisAPIKey)},
		{"diagnosis_model", s.DiagnosisModel},
		{"diagnosis_endpoint", s.DiagnosisEndpoint},
		{"diagnosis_log_lines", fmt.Sprint(s.DiagnosisLogLines)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "env.%s\t%s\n", k, s.Env[k])
	}

	return nil
}

// PrintMessage prints a simple message.
func (t *TablePrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(t.writer, msg)
	return err
}

func firstLine(s string) string {
	l, _, _ := strings.Cut(s, "\n")
	return l
}
