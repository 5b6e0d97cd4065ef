package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

var (
	errScenarioDeclared = transaction.MarkRecoverable(errors.New("scenario: declared error"))
	errScenarioSystem   = errors.New("scenario: system error")
)

type demo struct {
	tm      *transaction.Manager
	members member.Repository
}

type scenario struct {
	name        string
	description string
	run         func(d *demo, ctx context.Context, tag string) error
}

var scenarios = []scenario{
	{"A", "inner joined rollback taints the outer commit", (*demo).scenarioA},
	{"B", "requires-new inner failure leaves the outer intact", (*demo).scenarioB},
	{"C", "declared error without override still commits", (*demo).scenarioC},
	{"D", "declared error listed in rollback-for rolls back", (*demo).scenarioD},
}

// run は指定されたシナリオを実行し、期待と異なった件数を返す
func (d *demo) run(ctx context.Context, only []string) int {
	selected := make(map[string]bool, len(only))
	for _, name := range only {
		selected[strings.ToUpper(name)] = true
	}

	var failed int
	for _, s := range scenarios {
		if len(selected) > 0 && !selected[s.name] {
			continue
		}
		tag := strings.ToLower(s.name) + "-" + uuid.NewString()[:8]
		// シナリオごとに独立したスコープ
		if err := s.run(d, transaction.NewScope(ctx), tag); err != nil {
			failed++
			fmt.Printf("scenario %s: FAIL %s: %v\n", s.name, s.description, err)
			continue
		}
		fmt.Printf("scenario %s: ok   %s\n", s.name, s.description)
	}
	return failed
}

func (d *demo) save(ctx context.Context, username string) error {
	return d.members.Save(ctx, member.NewMember(username))
}

func (d *demo) expectSaved(ctx context.Context, username string, want bool) error {
	_, err := d.members.FindByUsername(ctx, username)
	switch {
	case err == nil && !want:
		return fmt.Errorf("%s should have been rolled back", username)
	case errors.Is(err, member.ErrMemberNotFound) && want:
		return fmt.Errorf("%s should have been committed", username)
	case err != nil && !errors.Is(err, member.ErrMemberNotFound):
		return err
	}
	return nil
}

func expectState(h *transaction.Handle, want transaction.State) error {
	if got := h.State(); got != want {
		return fmt.Errorf("%s: physical state %s, want %s", h.Name(), got, want)
	}
	return nil
}

func (d *demo) scenarioA(ctx context.Context, tag string) error {
	outerCtx, outer, err := d.tm.Begin(ctx, transaction.Options{Name: "scenario-a.outer"})
	if err != nil {
		return err
	}
	if err := d.save(outerCtx, tag+"-outer"); err != nil {
		_ = d.tm.Rollback(outerCtx, outer)
		return err
	}

	innerCtx, inner, err := d.tm.Begin(outerCtx, transaction.Options{Name: "scenario-a.inner"})
	if err != nil {
		_ = d.tm.Rollback(outerCtx, outer)
		return err
	}
	if inner.IsNew() {
		_ = d.tm.Rollback(outerCtx, outer)
		return errors.New("inner handle should join the outer transaction")
	}
	if err := d.save(innerCtx, tag+"-inner"); err != nil {
		_ = d.tm.Rollback(outerCtx, outer)
		return err
	}
	if err := d.tm.Rollback(innerCtx, inner); err != nil {
		_ = d.tm.Rollback(outerCtx, outer)
		return err
	}

	if err := d.tm.Commit(outerCtx, outer); !errors.Is(err, transaction.ErrUnexpectedRollback) {
		return fmt.Errorf("outer commit returned %v, want ErrUnexpectedRollback", err)
	}
	if err := expectState(outer, transaction.StateRolledBack); err != nil {
		return err
	}
	if err := d.expectSaved(ctx, tag+"-outer", false); err != nil {
		return err
	}
	return d.expectSaved(ctx, tag+"-inner", false)
}

func (d *demo) scenarioB(ctx context.Context, tag string) error {
	var inner *transaction.Handle
	err := d.tm.Execute(ctx, transaction.Options{Name: "scenario-b.outer"}, func(ctx context.Context) error {
		if err := d.save(ctx, tag+"-outer"); err != nil {
			return err
		}
		innerErr := d.tm.Execute(ctx, transaction.Options{Name: "scenario-b.inner", RequiresNew: true}, func(ctx context.Context) error {
			inner, _ = transaction.CurrentHandle(ctx)
			if err := d.save(ctx, tag+"-inner"); err != nil {
				return err
			}
			return errScenarioSystem
		})
		if !errors.Is(innerErr, errScenarioSystem) {
			return fmt.Errorf("inner returned %v, want the system error", innerErr)
		}
		// 外側は内側の失敗を処理して続行する
		return nil
	})
	if err != nil {
		return err
	}
	if inner == nil {
		return errors.New("inner handle was not observed")
	}
	if err := expectState(inner, transaction.StateRolledBack); err != nil {
		return err
	}
	if err := d.expectSaved(ctx, tag+"-outer", true); err != nil {
		return err
	}
	return d.expectSaved(ctx, tag+"-inner", false)
}

func (d *demo) scenarioC(ctx context.Context, tag string) error {
	var h *transaction.Handle
	err := d.tm.Execute(ctx, transaction.Options{Name: "scenario-c"}, func(ctx context.Context) error {
		h, _ = transaction.CurrentHandle(ctx)
		if err := d.save(ctx, tag); err != nil {
			return err
		}
		return errScenarioDeclared
	})
	if !errors.Is(err, errScenarioDeclared) {
		return fmt.Errorf("execute returned %v, want the declared error", err)
	}
	if err := expectState(h, transaction.StateCommitted); err != nil {
		return err
	}
	return d.expectSaved(ctx, tag, true)
}

func (d *demo) scenarioD(ctx context.Context, tag string) error {
	opts := transaction.Options{
		Name:        "scenario-d",
		RollbackFor: []transaction.ErrorKind{transaction.KindOf(errScenarioDeclared)},
	}
	var h *transaction.Handle
	err := d.tm.Execute(ctx, opts, func(ctx context.Context) error {
		h, _ = transaction.CurrentHandle(ctx)
		if err := d.save(ctx, tag); err != nil {
			return err
		}
		return errScenarioDeclared
	})
	if !errors.Is(err, errScenarioDeclared) {
		return fmt.Errorf("execute returned %v, want the declared error", err)
	}
	if err := expectState(h, transaction.StateRolledBack); err != nil {
		return err
	}
	return d.expectSaved(ctx, tag, false)
}
