package editor

import "sync"

// Prompt asks the user for a line of text.
type Prompt struct {
	Title       string
	Placeholder string
}

// Confirm asks the user to approve a destructive step.
type Confirm struct {
	Title        string
	Message      string
	ConfirmLabel string
}

// Dialogs presents modal prompts and confirmations. Exactly one of the two
// callbacks must be invoked per request, either synchronously or later.
// Notice is informational and needs no answer.
type Dialogs interface {
	Prompt(p Prompt, onConfirm func(value string), onCancel func())
	Confirm(c Confirm, onConfirm func(), onCancel func())
	Notice(title, message string)
}

// ScriptedDialogs answers every dialog synchronously from a fixed script.
// Prompts consume Answers in order and are cancelled once it runs dry;
// confirmations consume Approvals the same way. It is used for headless
// sessions and tests.
type ScriptedDialogs struct {
	mu        sync.Mutex
	Answers   []string
	Approvals []bool
	Notices   []string
	Prompts   []Prompt
	Confirms  []Confirm
}

func (d *ScriptedDialogs) Prompt(p Prompt, onConfirm func(string), onCancel func()) {
	d.mu.Lock()
	d.Prompts = append(d.Prompts, p)
	answer, ok := "", len(d.Answers) > 0
	if ok {
		answer, d.Answers = d.Answers[0], d.Answers[1:]
	}
	d.mu.Unlock()

	if ok {
		onConfirm(answer)
	} else {
		onCancel()
	}
}

func (d *ScriptedDialogs) Confirm(c Confirm, onConfirm func(), onCancel func()) {
	d.mu.Lock()
	d.Confirms = append(d.Confirms, c)
	approve := false
	if len(d.Approvals) > 0 {
		approve, d.Approvals = d.Approvals[0], d.Approvals[1:]
	}
	d.mu.Unlock()

	if approve {
		onConfirm()
	} else {
		onCancel()
	}
}

func (d *ScriptedDialogs) Notice(title, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Notices = append(d.Notices, title+": "+message)
}

// PendingDialog is an unanswered request held by PendingDialogs.
type PendingDialog struct {
	Prompt  *Prompt
	Confirm *Confirm

	onPrompt  func(string)
	onConfirm func()
	onCancel  func()
}

// PendingDialogs queues requests until the embedding application answers
// them with Resolve or Dismiss. Answers must be delivered on the same
// logical thread that drives the controller.
type PendingDialogs struct {
	mu      sync.Mutex
	queue   []*PendingDialog
	notices []string
}

func (d *PendingDialogs) Prompt(p Prompt, onConfirm func(string), onCancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, &PendingDialog{Prompt: &p, onPrompt: onConfirm, onCancel: onCancel})
}

func (d *PendingDialogs) Confirm(c Confirm, onConfirm func(), onCancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, &PendingDialog{Confirm: &c, onConfirm: onConfirm, onCancel: onCancel})
}

func (d *PendingDialogs) Notice(title, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, title+": "+message)
}

// Current returns the oldest unanswered dialog.
func (d *PendingDialogs) Current() (PendingDialog, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return PendingDialog{}, false
	}
	return *d.queue[0], true
}

// DrainNotices returns and forgets the notices shown so far.
func (d *PendingDialogs) DrainNotices() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.notices
	d.notices = nil
	return out
}

// Resolve confirms the oldest dialog; value is ignored for confirmations.
// It reports whether a dialog was waiting.
func (d *PendingDialogs) Resolve(value string) bool {
	p, ok := d.pop()
	if !ok {
		return false
	}
	if p.Prompt != nil {
		p.onPrompt(value)
	} else {
		p.onConfirm()
	}
	return true
}

// Dismiss cancels the oldest dialog. It reports whether a dialog was waiting.
func (d *PendingDialogs) Dismiss() bool {
	p, ok := d.pop()
	if !ok {
		return false
	}
	p.onCancel()
	return true
}

func (d *PendingDialogs) pop() (*PendingDialog, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	p := d.queue[0]
	d.queue = d.queue[1:]
	return p, true
}
