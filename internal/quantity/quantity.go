// Package quantity counts how many times a part is placed in the assembly
// and labels the exported flat patterns with that count.
package quantity

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/designate"
	"github.com/vk/paramcascade/internal/session"
)

// Count returns the number of instances carrying exactly this designation.
// Auxiliary instances are skipped as in numbering. A part that is not found
// counts as 1: a manufactured quantity is never zero.
func Count(instances []session.Instance, designation, reserved string) int {
	want := strings.TrimSpace(designation)
	n := 0
	for _, in := range instances {
		if designate.Skipped(in.Designation, reserved) {
			continue
		}
		if strings.TrimSpace(in.Designation) == want {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// Resolver reads instance counts from the assembly.
type Resolver struct {
	Pacer    *session.Pacer
	Reserved string
}

// Quantity opens the assembly without saving it and counts designation.
// On failure the quantity is 1 and the error is returned alongside.
func (r *Resolver) Quantity(ctx context.Context, s session.Session, assemblyPath, designation string) (int, error) {
	qty := 1
	err := session.WithDocument(ctx, s, r.Pacer, assemblyPath, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		instances, err := s.ListInstances(ctx, h)
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}
		qty = Count(instances, designation, r.Reserved)
		return nil
	})
	if err != nil {
		return 1, err
	}
	ctxlog.FromContext(ctx).Debug("Quantity resolved.", "designation", designation, "quantity", qty)
	return qty, nil
}
