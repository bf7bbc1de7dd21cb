package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/dpgf-extract/internal/header"
	"github.com/sells-group/dpgf-extract/internal/model"
)

const promptSampleRows = 3

// promptResolver asks an operator for a column mapping on a terminal.
type promptResolver struct {
	in  *bufio.Reader
	out io.Writer
}

// newPromptResolver reads answers from in and writes prompts to out.
func newPromptResolver(in io.Reader, out io.Writer) header.ResolverFunc {
	p := &promptResolver{in: bufio.NewReader(in), out: out}
	return p.resolve
}

// resolve asks for a column per role, then for confirmation. A refused
// mapping starts over. End of input declines.
func (p *promptResolver) resolve(ctx context.Context, req header.ManualRequest) (model.RoleMap, error) {
	p.describe(req)
	for {
		roles := model.RoleMap{}
		for _, role := range model.AllRoles() {
			idx, ok, err := p.askColumn(ctx, req, role)
			if err != nil {
				return nil, declineOnEOF(err)
			}
			if ok {
				roles[role] = idx
			}
		}
		if err := roles.Validate(req.Width); err != nil {
			fmt.Fprintf(p.out, "invalid mapping: %v\n", err)
			continue
		}

		confirmed, err := p.confirm(ctx, roles)
		if err != nil {
			return nil, declineOnEOF(err)
		}
		if confirmed {
			return roles, nil
		}
		fmt.Fprintln(p.out, "mapping discarded, starting over")
	}
}

func (p *promptResolver) describe(req header.ManualRequest) {
	fmt.Fprintf(p.out, "\ncolumn mapping needed for %s (signature %s)\n", req.Document, req.Signature)
	for c := 0; c < req.Width; c++ {
		name, _ := excelize.ColumnNumberToName(c + 1)
		fmt.Fprintf(p.out, "  %d (%s): %s\n", c, name, columnLabel(req, c))
	}
	for i, row := range req.Sample {
		if i == promptSampleRows {
			break
		}
		fmt.Fprintf(p.out, "  sample: %s\n", strings.Join(row, " | "))
	}
	fmt.Fprintln(p.out, "answer with a column number or letter, empty keeps the proposal, - leaves the role unmapped")
}

func columnLabel(req header.ManualRequest, c int) string {
	if c < len(req.Headers) && strings.TrimSpace(req.Headers[c]) != "" {
		return req.Headers[c]
	}
	for _, row := range req.Sample {
		if c < len(row) && strings.TrimSpace(row[c]) != "" {
			return row[c]
		}
	}
	return ""
}

// askColumn returns the column chosen for role, or ok=false when the role is
// left unmapped.
func (p *promptResolver) askColumn(ctx context.Context, req header.ManualRequest, role model.Role) (int, bool, error) {
	proposed, hasProposal := req.Proposed.Get(role)
	for {
		if hasProposal {
			fmt.Fprintf(p.out, "%s [%d]: ", role, proposed)
		} else {
			fmt.Fprintf(p.out, "%s [-]: ", role)
		}
		answer, err := p.readLine(ctx)
		if err != nil {
			return 0, false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return proposed, hasProposal, nil
		case "-", "skip":
			return 0, false, nil
		}
		idx, err := parseColumn(answer)
		if err != nil || (req.Width > 0 && idx >= req.Width) {
			fmt.Fprintf(p.out, "not a column: %q\n", answer)
			continue
		}
		return idx, true, nil
	}
}

func (p *promptResolver) confirm(ctx context.Context, roles model.RoleMap) (bool, error) {
	for _, role := range roles.Mapped() {
		fmt.Fprintf(p.out, "  %s -> %d\n", role, roles[role])
	}
	for {
		fmt.Fprint(p.out, "use this mapping? [y/n]: ")
		answer, err := p.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes", "o", "oui":
			return true, nil
		case "n", "no", "non":
			return false, nil
		}
	}
}

func (p *promptResolver) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// parseColumn accepts a zero-based index or a spreadsheet column letter.
func parseColumn(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, eris.Errorf("negative column %d", n)
		}
		return n, nil
	}
	n, err := excelize.ColumnNameToNumber(s)
	if err != nil {
		return 0, eris.Wrapf(err, "parse column %q", s)
	}
	return n - 1, nil
}

func declineOnEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
