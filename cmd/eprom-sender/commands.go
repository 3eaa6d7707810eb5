// cmd/eprom-sender/commands.go
package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"eprom-sender/internal/config"
	"eprom-sender/internal/discovery/serial"
	"eprom-sender/internal/model"
	"eprom-sender/internal/protocol"
	"eprom-sender/internal/render"
	"eprom-sender/internal/service"
	"eprom-sender/internal/utils"
)

// runner holds the dependencies the commands share
type runner struct {
	dial protocol.Dialer
}

type environment struct {
	config *config.Config
	logger *zap.Logger
}

// setup loads configuration, applies flags given on the command line and
// builds the logger
func setup(c *cli.Context) (*environment, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, &service.ValidationError{Field: "configuration", Message: err.Error(), Err: err}
	}

	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &service.ValidationError{Field: "options", Message: err.Error(), Err: err}
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, err
	}

	return &environment{config: cfg, logger: logger}, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("port") {
		cfg.Serial.Port = c.String("port")
	}
	if c.IsSet("baud") {
		cfg.Serial.BaudRate = c.Int("baud")
	}
	if c.IsSet("type") {
		cfg.Upload.Type = c.Int("type")
		cfg.Upload.TypeSet = true
	}
	if c.IsSet("skip") {
		cfg.Upload.Skip = c.Int("skip")
	}
	if c.IsSet("lynx") {
		cfg.Upload.Lynx = c.Bool("lynx")
	}
	if c.IsSet("protocol") {
		cfg.Upload.Protocol = c.String("protocol")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.Bool("quiet") {
		cfg.Logging.Level = "warn"
	}
}

func (e *environment) uploadService(dial protocol.Dialer) (*service.UploadService, error) {
	rev, err := protocol.LookupRevision(e.config.Upload.Protocol)
	if err != nil {
		return nil, &service.ValidationError{Field: "protocol", Message: err.Error(), Err: err}
	}
	return service.NewUploadService(rev, e.config.SerialSettings(), dial, e.logger), nil
}

func (e *environment) request(rev protocol.Revision, file string) service.UploadRequest {
	return service.UploadRequest{
		Port:     e.config.Serial.Port,
		BaudRate: e.config.Serial.BaudRate,
		Mode:     e.config.Upload.ModeFor(rev),
		Skip:     e.config.Upload.Skip,
		Lynx:     e.config.Upload.Lynx,
		FilePath: file,
	}
}

func singleFileArg(c *cli.Context) (string, error) {
	switch c.NArg() {
	case 0:
		return "", &service.ValidationError{Field: "file", Message: "not specified"}
	case 1:
		return c.Args().First(), nil
	default:
		return "", &service.ValidationError{Field: "arguments", Message: fmt.Sprintf("expected one file, got %d arguments", c.NArg())}
	}
}

func (r *runner) uploadAction(c *cli.Context) error {
	if c.NArg() == 0 {
		if err := cli.ShowAppHelp(c); err != nil {
			return err
		}
	}
	file, err := singleFileArg(c)
	if err != nil {
		return err
	}

	env, err := setup(c)
	if err != nil {
		return err
	}
	defer utils.CloseLogger(env.logger)

	svc, err := env.uploadService(r.dial)
	if err != nil {
		return err
	}

	result, err := svc.Upload(c.Context, env.request(svc.Revision(), file))
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, result.Summary())
	return nil
}

func (r *runner) cardCommand() *cli.Command {
	return &cli.Command{
		Name:      "card",
		Usage:     "Send an Atari Lynx .lnx cartridge image in Lynx dev cart mode",
		ArgsUsage: "<file.lnx>",
		Action: func(c *cli.Context) error {
			file, err := singleFileArg(c)
			if err != nil {
				return err
			}

			env, err := setup(c)
			if err != nil {
				return err
			}
			defer utils.CloseLogger(env.logger)

			svc, err := env.uploadService(r.dial)
			if err != nil {
				return err
			}

			upload, err := svc.UploadCard(c.Context, env.request(svc.Revision(), file))
			if err != nil {
				return err
			}

			hdr := upload.Cart.Header
			fmt.Fprintf(c.App.Writer, "Cartridge: %q by %q, bank 0 page size %d\n",
				hdr.Name(), hdr.ManufacturerName(), hdr.Bank0PageSize)
			fmt.Fprintln(c.App.Writer, upload.Result.Summary())
			return nil
		},
	}
}

// modeList renders a revision's mode table
type modeList struct {
	rev protocol.Revision
}

func (m modeList) Columns() []string {
	return []string{"TYPE", "EPROM", "MAX SIZE"}
}

func (m modeList) Rows() [][]string {
	var rows [][]string
	for _, e := range m.rev.Modes.Entries() {
		if e.IsSentinel() {
			if m.rev.ZeroMode != protocol.ZeroModeInvalid {
				rows = append(rows, []string{"0", e.Name, "-"})
			}
			continue
		}
		rows = append(rows, []string{strconv.Itoa(e.Index), e.Name, strconv.Itoa(e.MaxSize)})
	}
	return rows
}

func (m modeList) Data() any {
	return struct {
		Protocol    string            `json:"protocol" yaml:"protocol"`
		Description string            `json:"description" yaml:"description"`
		ZeroMode    string            `json:"zero_mode" yaml:"zero_mode"`
		DefaultMode int               `json:"default_mode" yaml:"default_mode"`
		Modes       []model.ModeEntry `json:"modes" yaml:"modes"`
	}{
		Protocol:    m.rev.Name,
		Description: m.rev.Description,
		ZeroMode:    m.rev.ZeroMode.String(),
		DefaultMode: m.rev.DefaultMode,
		Modes:       m.rev.Modes.Entries(),
	}
}

func (r *runner) modesCommand() *cli.Command {
	return &cli.Command{
		Name:  "modes",
		Usage: "List the EPROM types of a protocol revision",
		Flags: []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			format, err := render.ParseFormat(c.String("format"))
			if err != nil {
				return &service.ValidationError{Field: "format", Message: err.Error(), Err: err}
			}

			rev, err := protocol.LookupRevision(c.String("protocol"))
			if err != nil {
				return &service.ValidationError{Field: "protocol", Message: err.Error(), Err: err}
			}

			return render.NewRenderer(format, c.App.Writer).Render(modeList{rev: rev})
		},
	}
}

// portList renders discovered serial ports
type portList []serial.Port

func (p portList) Columns() []string {
	return []string{"PORT", "USB", "VID:PID", "SERIAL", "PRODUCT"}
}

func (p portList) Rows() [][]string {
	rows := make([][]string, 0, len(p))
	for _, port := range p {
		ids := "-"
		if port.USB {
			ids = port.VID + ":" + port.PID
		}
		rows = append(rows, []string{port.Name, strconv.FormatBool(port.USB), ids, port.SerialNumber, port.Product})
	}
	return rows
}

func (p portList) Data() any {
	return []serial.Port(p)
}

func (r *runner) portsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List serial ports",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.BoolFlag{Name: "usb", Usage: "only list USB serial adapters"},
		},
		Action: func(c *cli.Context) error {
			format, err := render.ParseFormat(c.String("format"))
			if err != nil {
				return &service.ValidationError{Field: "format", Message: err.Error(), Err: err}
			}

			env, err := setup(c)
			if err != nil {
				return err
			}
			defer utils.CloseLogger(env.logger)

			ports, err := serial.NewScanner(env.logger).Scan(c.Context, c.Bool("usb"))
			if err != nil {
				return err
			}
			return render.NewRenderer(format, c.App.Writer).Render(portList(ports))
		},
	}
}
