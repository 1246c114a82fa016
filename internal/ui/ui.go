package ui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"

	"studyledger/internal/config"
	"studyledger/internal/ledger"
)

type view int

const (
	viewTasks view = iota
	viewRewards
	viewHistory
	viewTimer
	viewTodo
)

var viewNames = []string{"Tasks", "Rewards", "History", "Timer", "Todo"}

type mode int

const (
	modeList mode = iota
	modeForm
)

var taskFilters = []string{"all", string(ledger.FrequencyDaily), string(ledger.FrequencyWeekly), string(ledger.FrequencyAsNeeded)}
var rewardFilters = []string{"all", string(ledger.AvailabilityAvailable), string(ledger.AvailabilityUnavailable)}

// formState backs the add/edit form for a task, a reward or a checklist item.
type formState struct {
	kind   view
	editID string
	values []string
	index  int
}

type Model struct {
	store   *ledger.Store
	cfg     config.Config
	view    view
	mode    mode
	cursor  int
	input   textinput.Model
	status  string
	form    *formState
	tasks   []ledger.Task
	rewards []ledger.Reward
	history []ledger.HistoryEntry

	taskFilter   int
	rewardFilter int

	confirmDel bool
	pendingDel string

	timer studyTimer
	todos checklist
}

// New builds the TUI model over store.
func New(store *ledger.Store, cfg config.Config) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		store:  store,
		cfg:    cfg,
		input:  ti,
		mode:   modeList,
		timer:  newStudyTimer(),
		status: "Press 'a' to add, space to complete/redeem, tab to switch view.",
	}
	if i := slices.Index(taskFilters, strings.ToLower(cfg.DefaultFilter)); i >= 0 {
		m.taskFilter = i
	}
	m.reload()
	return m
}

// Run starts the interactive program and blocks until it exits.
func Run(store *ledger.Store, cfg config.Config) error {
	program := tea.NewProgram(New(store, cfg))
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.form != nil {
			return m.updateFormMode(msg.String(), msg)
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.updateListMode(msg.String())
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	case timer.TickMsg, timer.StartStopMsg, timer.TimeoutMsg:
		var cmd tea.Cmd
		var finished bool
		m.timer, cmd, finished = m.timer.Update(msg)
		if finished {
			m.status = Good.Render(fmt.Sprintf("%s Time is up. %s period ready, press %q to start.", IconTimer, m.timer.Label(), m.cfg.Keys.Complete))
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) reload() {
	f := ledger.TaskFilter{}
	if m.taskFilter > 0 {
		f.Frequency = ledger.Frequency(taskFilters[m.taskFilter])
	}
	m.tasks = m.store.Tasks(f)
	m.rewards = m.store.Rewards(ledger.ParseRewardFilter(rewardFilters[m.rewardFilter]))
	m.history = m.store.History()
	slices.Reverse(m.history)
	m.cursor = clampCursor(m.cursor, m.itemCount())
}

func (m Model) itemCount() int {
	switch m.view {
	case viewTasks:
		return len(m.tasks)
	case viewRewards:
		return len(m.rewards)
	case viewHistory:
		return len(m.history)
	case viewTodo:
		return len(m.todos.items)
	default:
		return 0
	}
}

// updateTimerKeys handles the keys that only apply on the timer view.
func (m Model) updateTimerKeys(key string) (Model, tea.Cmd, bool) {
	var cmd tea.Cmd
	switch key {
	case m.cfg.Keys.Complete:
		m.timer, cmd = m.timer.Toggle()
		if m.timer.active {
			m.status = fmt.Sprintf("%s %s started", IconTimer, m.timer.Label())
		} else {
			m.status = fmt.Sprintf("%s %s paused at %s", IconTimer, m.timer.Label(), m.timer.Remaining())
		}
	case m.cfg.Keys.TimerReset:
		m.timer = m.timer.Reset()
		m.status = "Timer reset"
	case m.cfg.Keys.TimerMode:
		m.timer = m.timer.SwitchMode()
		m.status = "Switched to " + strings.ToLower(m.timer.Label())
	default:
		return m, nil, false
	}
	return m, cmd, true
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	if m.view == viewTimer {
		if next, cmd, ok := m.updateTimerKeys(key); ok {
			return next, cmd
		}
	}
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, m.itemCount())
	case m.cfg.Keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, m.itemCount())
	case m.cfg.Keys.NextView:
		m.view = (m.view + 1) % view(len(viewNames))
		m.cursor = 0
		m.status = viewNames[m.view]
	case m.cfg.Keys.Filter:
		switch m.view {
		case viewTasks:
			m.taskFilter = (m.taskFilter + 1) % len(taskFilters)
			m.status = "Filter: " + taskFilters[m.taskFilter]
		case viewRewards:
			m.rewardFilter = (m.rewardFilter + 1) % len(rewardFilters)
			m.status = "Filter: " + rewardFilters[m.rewardFilter]
		}
		m.cursor = 0
		m.reload()
	case m.cfg.Keys.Add:
		if m.view == viewHistory || m.view == viewTimer {
			return m, nil
		}
		return m.startForm(m.view, "", nil)
	case m.cfg.Keys.Edit:
		switch {
		case m.view == viewTasks && len(m.tasks) > 0:
			t := m.tasks[m.cursor]
			return m.startForm(viewTasks, t.ID, []string{t.Name, t.Category, strconv.Itoa(t.Points), string(t.Frequency), t.Description})
		case m.view == viewRewards && len(m.rewards) > 0:
			r := m.rewards[m.cursor]
			return m.startForm(viewRewards, r.ID, []string{r.Name, r.Category, strconv.Itoa(r.Cost), r.Description})
		}
	case m.cfg.Keys.Complete:
		return m.activate()
	case m.cfg.Keys.Delete:
		switch {
		case m.view == viewTasks && len(m.tasks) > 0:
			t := m.tasks[m.cursor]
			m.confirmDel, m.pendingDel = true, t.ID
			m.status = fmt.Sprintf("Delete task \"%s\"? y/n", t.Name)
		case m.view == viewRewards && len(m.rewards) > 0:
			r := m.rewards[m.cursor]
			m.confirmDel, m.pendingDel = true, r.ID
			m.status = fmt.Sprintf("Delete reward \"%s\"? y/n", r.Name)
		case m.view == viewTodo && len(m.todos.items) > 0:
			m.todos = m.todos.Remove(m.cursor)
			m.cursor = clampCursor(m.cursor, m.itemCount())
			m.status = "Removed"
		}
	}
	return m, nil
}

// activate completes the selected task, redeems the selected reward or ticks
// the selected checklist item.
func (m Model) activate() (tea.Model, tea.Cmd) {
	switch {
	case m.view == viewTodo && len(m.todos.items) > 0:
		m.todos = m.todos.Toggle(m.cursor)
		done, total := m.todos.Progress()
		m.status = fmt.Sprintf("Done %d/%d", done, total)
		return m, nil
	case m.view == viewTasks && len(m.tasks) > 0:
		t := m.tasks[m.cursor]
		entry, err := m.store.CompleteTask(t.ID)
		if err != nil {
			m.status = Bad.Render(fmt.Sprintf("complete failed: %v", err))
			return m, nil
		}
		m.status = Good.Render(fmt.Sprintf("%s %s +%d %s", IconDone, t.Name, entry.Points, m.store.Currency()))
	case m.view == viewRewards && len(m.rewards) > 0:
		r := m.rewards[m.cursor]
		_, err := m.store.RedeemReward(r.ID)
		var ib *ledger.InsufficientBalanceError
		switch {
		case errors.As(err, &ib):
			m.status = Warn.Render(fmt.Sprintf("%s Not enough %s: need %d, have %d", IconWarn, m.store.Currency(), ib.Cost, ib.Balance))
			return m, nil
		case err != nil:
			m.status = Bad.Render(fmt.Sprintf("redeem failed: %v", err))
			return m, nil
		}
		m.status = Good.Render(fmt.Sprintf("%s Redeemed %s -%d %s", IconReward, r.Name, r.Cost, m.store.Currency()))
	}
	m.reload()
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = ""
		return m, nil
	case "y", "Y":
		var err error
		if m.view == viewTasks {
			err = m.store.DeleteTask(m.pendingDel)
		} else {
			err = m.store.DeleteReward(m.pendingDel)
		}
		m.confirmDel = false
		m.pendingDel = ""
		if err != nil {
			m.status = Bad.Render(fmt.Sprintf("delete failed: %v", err))
			return m, nil
		}
		m.reload()
		m.status = "Deleted"
		return m, nil
	default:
		return m, nil
	}
}

func formFields(kind view) []string {
	switch kind {
	case viewRewards:
		return []string{"name", "category", "cost", "description"}
	case viewTodo:
		return []string{"todo"}
	}
	return []string{"name", "category", "points", "frequency (daily/weekly/as_needed)", "description"}
}

func (m Model) startForm(kind view, editID string, values []string) (tea.Model, tea.Cmd) {
	fields := formFields(kind)
	if values == nil {
		values = make([]string, len(fields))
	}
	m.form = &formState{kind: kind, editID: editID, values: values}
	m.mode = modeForm
	m.input.SetValue(m.form.values[0])
	m.input.Placeholder = fields[0]
	m.input.Focus()
	m.status = m.formPrompt()
	return m, nil
}

func (m Model) updateFormMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fields := formFields(m.form.kind)
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case "tab", "down":
		m.form.values[m.form.index] = m.input.Value()
		m.form.index = wrapIndex(m.form.index+1, len(fields))
	case "shift+tab", "up":
		m.form.values[m.form.index] = m.input.Value()
		m.form.index = wrapIndex(m.form.index-1, len(fields))
	case m.cfg.Keys.Confirm, "enter":
		m.form.values[m.form.index] = m.input.Value()
		if m.form.index >= len(fields)-1 {
			return m.saveForm()
		}
		m.form.index++
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	m.input.SetValue(m.form.values[m.form.index])
	m.input.Placeholder = fields[m.form.index]
	m.status = m.formPrompt()
	return m, nil
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	f := m.form
	if f.kind == viewTodo {
		var ok bool
		if m.todos, ok = m.todos.Add(f.values[0]); !ok {
			m.status = Bad.Render("todo text is required")
			return m, nil
		}
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.cursor = len(m.todos.items) - 1
		m.status = "Added " + strings.TrimSpace(f.values[0])
		return m, nil
	}

	amount, err := parseAmount(f.values[2])
	if err != nil {
		m.status = Bad.Render(err.Error())
		return m, nil
	}
	name := strings.TrimSpace(f.values[0])
	category := strings.TrimSpace(f.values[1])

	switch f.kind {
	case viewTasks:
		freq, perr := ledger.ParseFrequency(f.values[3])
		if perr != nil {
			m.status = Bad.Render(perr.Error())
			return m, nil
		}
		desc := f.values[4]
		if f.editID == "" {
			_, err = m.store.AddTask(ledger.TaskInput{Name: name, Category: category, Points: amount, Frequency: freq, Description: desc})
		} else {
			_, err = m.store.UpdateTask(f.editID, ledger.TaskPatch{Name: &name, Category: &category, Points: &amount, Frequency: &freq, Description: &desc})
		}
	case viewRewards:
		desc := f.values[3]
		if f.editID == "" {
			_, err = m.store.AddReward(ledger.RewardInput{Name: name, Category: category, Cost: amount, Description: desc})
		} else {
			_, err = m.store.UpdateReward(f.editID, ledger.RewardPatch{Name: &name, Category: &category, Cost: &amount, Description: &desc})
		}
	}
	if err != nil {
		m.status = Bad.Render(fmt.Sprintf("save failed: %v", err))
		return m, nil
	}

	added := f.editID == ""
	m.form = nil
	m.mode = modeList
	m.input.Blur()
	m.reload()
	if added {
		m.cursor = clampCursor(m.itemCount()-1, m.itemCount())
		m.status = "Added " + name
	} else {
		m.status = "Saved " + name
	}
	return m, nil
}

func parseAmount(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("points/cost is required")
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("points/cost must be a non-negative integer, got %q", v)
	}
	return n, nil
}

func (m Model) formPrompt() string {
	if m.form == nil {
		return ""
	}
	fields := formFields(m.form.kind)
	verb := "New"
	if m.form.editID != "" {
		verb = "Edit"
	}
	return fmt.Sprintf("%s %s: %s (field %d of %d). Enter to advance, Esc to cancel, tab to move.",
		verb, formNoun(m.form.kind),
		fields[m.form.index], m.form.index+1, len(fields))
}

func formNoun(kind view) string {
	switch kind {
	case viewRewards:
		return "reward"
	case viewTodo:
		return "todo"
	default:
		return "task"
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(Heading(IconTask, "Study Ledger"))
	b.WriteString("  ")
	b.WriteString(Balance(m.store.Points(), m.store.Currency()))
	if m.timer.active && m.view != viewTimer {
		b.WriteString(Muted.Render(fmt.Sprintf("  %s %s %s", IconTimer, m.timer.Label(), m.timer.Remaining())))
	}
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.view {
	case viewTasks:
		b.WriteString(m.renderTasks())
	case viewRewards:
		b.WriteString(m.renderRewards())
	case viewHistory:
		b.WriteString(m.renderHistory())
	case viewTimer:
		b.WriteString(m.renderTimer())
	case viewTodo:
		b.WriteString(m.renderTodos())
	}

	b.WriteString("\n---\n")
	if m.form != nil {
		b.WriteString(m.renderFormBox())
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(Muted.Render(renderHelp(m.cfg.Keys)))
	return b.String()
}

func (m Model) renderTabs() string {
	parts := make([]string, len(viewNames))
	for i, name := range viewNames {
		if view(i) == m.view {
			parts[i] = ActiveTab.Render(name)
		} else {
			parts[i] = Tab.Render(name)
		}
	}
	switch m.view {
	case viewTasks:
		parts = append(parts, Muted.Render("filter:"+taskFilters[m.taskFilter]))
	case viewRewards:
		parts = append(parts, Muted.Render("filter:"+rewardFilters[m.rewardFilter]))
	}
	return strings.Join(parts, "  ")
}

func (m Model) cursorMark(i int) string {
	if m.cursor == i && m.mode == modeList {
		return ">"
	}
	return " "
}

func (m Model) renderTasks() string {
	if len(m.tasks) == 0 {
		return "No tasks yet. Press 'a' to add one."
	}
	var b strings.Builder
	for i, t := range m.tasks {
		line := fmt.Sprintf("%s %-24s %-10s +%-4d %s", m.cursorMark(i), t.Name, t.Category, t.Points, humanFrequency(t.Frequency))
		if m.cursor == i {
			line = SelectedRow.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if t := m.tasks[clampCursor(m.cursor, len(m.tasks))]; t.Description != "" {
		b.WriteString("\n" + Muted.Render(t.Description) + "\n")
	}
	return b.String()
}

func (m Model) renderRewards() string {
	if len(m.rewards) == 0 {
		return "No rewards yet. Press 'a' to add one."
	}
	points := m.store.Points()
	var b strings.Builder
	for i, r := range m.rewards {
		mark := Good.Render("✓")
		if r.Cost > points {
			mark = Muted.Render("·")
		}
		line := fmt.Sprintf("%s %-24s %-10s %5d", m.cursorMark(i), r.Name, r.Category, r.Cost)
		if m.cursor == i {
			line = SelectedRow.Render(line)
		}
		b.WriteString(line + " " + mark + "\n")
	}
	if r := m.rewards[clampCursor(m.cursor, len(m.rewards))]; r.Description != "" {
		b.WriteString("\n" + Muted.Render(r.Description) + "\n")
	}
	return b.String()
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "No history yet."
	}
	var b strings.Builder
	for i, h := range m.history {
		icon := IconTask
		if h.Type == ledger.EntryReward {
			icon = IconReward
		}
		b.WriteString(fmt.Sprintf("%s %s %s %-24s %s\n",
			m.cursorMark(i), h.Date.Local().Format("2006-01-02 15:04"), icon, h.Label(), Signed(h.Delta())))
	}
	return b.String()
}

func (m Model) renderTimer() string {
	state := "paused"
	if m.timer.active {
		state = "running"
	}
	clock := Title.Render(m.timer.Remaining())
	if m.timer.onBreak {
		clock = Good.Render(m.timer.Remaining())
	}
	body := fmt.Sprintf("%s %s time\n\n%s  %s", IconTimer, m.timer.Label(), clock, Muted.Render(state))
	k := m.cfg.Keys
	help := fmt.Sprintf("%q start/pause • %s reset • %s switch study/break", k.Complete, k.TimerReset, k.TimerMode)
	return Panel.Render(body) + "\n" + Muted.Render(help)
}

func (m Model) renderTodos() string {
	done, total := m.todos.Progress()
	if total == 0 {
		return "Nothing on the list. Press 'a' to add something to do today."
	}
	var b strings.Builder
	b.WriteString(H2.Render(fmt.Sprintf("Done %d/%d", done, total)) + "\n")
	for i, it := range m.todos.items {
		box := "[ ]"
		title := it.title
		if it.done {
			box = Good.Render("[x]")
			title = Muted.Render(title)
		}
		line := fmt.Sprintf("%s %s %s", m.cursorMark(i), box, title)
		if m.cursor == i {
			line = SelectedRow.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderFormBox() string {
	fields := formFields(m.form.kind)
	var b strings.Builder
	for i, name := range fields {
		prefix := " "
		if i == m.form.index {
			prefix = ">"
		}
		val := m.form.values[i]
		if strings.TrimSpace(val) == "" {
			val = "(empty)"
		}
		b.WriteString(fmt.Sprintf("%s %-36s : %s\n", prefix, name, val))
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s edit • %q complete/redeem • %s delete • %s filter • %s view • %s quit",
		k.Up, k.Down, k.Add, k.Edit, k.Complete, k.Delete, k.Filter, k.NextView, k.Quit)
}

func humanFrequency(f ledger.Frequency) string {
	switch f {
	case ledger.FrequencyWeekly:
		return "weekly"
	case ledger.FrequencyAsNeeded:
		return "as needed"
	default:
		return "daily"
	}
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
