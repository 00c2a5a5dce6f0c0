package geometry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

// maxStderr caps how much generator stderr is kept for logging.
const maxStderr = 4 << 10

// CommandGenerator runs an external program once per generation.
//
// The program receives {"kind": "bin"|"baseplate", "params": {...}} on stdin,
// with params in the API's snake_case field names, and must write ASCII STL to
// stdout and exit 0. The process is killed when ctx ends.
type CommandGenerator struct {
	// Path is the executable; Args are passed before any request data.
	Path string
	Args []string
}

// NewCommandGenerator splits a command line on whitespace. Quoting is not
// supported; wrap complex invocations in a script.
func NewCommandGenerator(cmdline string) (*CommandGenerator, error) {
	f := strings.Fields(cmdline)
	if len(f) == 0 {
		return nil, errors.New("geometry: empty generator command")
	}
	return &CommandGenerator{Path: f[0], Args: f[1:]}, nil
}

type commandInput struct {
	Kind   domain.Kind `json:"kind"`
	Params any         `json:"params"`
}

func (g *CommandGenerator) GenerateBin(ctx context.Context, s domain.BinSpec) ([]byte, error) {
	return g.run(ctx, domain.KindBin, s)
}

func (g *CommandGenerator) GenerateBaseplate(ctx context.Context, s domain.BaseplateSpec) ([]byte, error) {
	return g.run(ctx, domain.KindBaseplate, s)
}

func (g *CommandGenerator) run(ctx context.Context, kind domain.Kind, params any) ([]byte, error) {
	in, err := json.Marshal(commandInput{Kind: kind, Params: params})
	if err != nil {
		return nil, &GenerationError{Kind: kind, Msg: "encode parameters", Err: err}
	}

	cmd := exec.CommandContext(ctx, g.Path, g.Args...)
	cmd.Stdin = bytes.NewReader(in)
	// Orphaned grandchildren may hold stdout open after the kill.
	cmd.WaitDelay = time.Second
	var stdout bytes.Buffer
	stderr := &capped{max: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().
			Err(err).
			Str("kind", string(kind)).
			Str("stderr", stderr.String()).
			Msg("generator command failed")
		return nil, &GenerationError{Kind: kind, Msg: "backend exited with an error", Detail: stderr.String(), Err: err}
	}

	out := stdout.Bytes()
	if !bytes.HasPrefix(bytes.TrimLeft(out, " \t\r\n"), []byte("solid")) {
		return nil, &GenerationError{Kind: kind, Msg: "backend produced no ASCII STL"}
	}
	return out, nil
}

// capped keeps the first max bytes written to it.
type capped struct {
	buf bytes.Buffer
	max int
}

func (c *capped) Write(p []byte) (int, error) {
	if room := c.max - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *capped) String() string { return c.buf.String() }
