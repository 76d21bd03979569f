package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	ansiReset   = "\033[0m"
	ansiCyan    = "\033[96m"
	ansiMagenta = "\033[95m"
	ansiYellow  = "\033[33m"
)

// Screen layout: banner on rows 1-9, status on statusRow, logs scroll below.
const (
	statusRow = 10
	logRow    = 12
)

// termMu serializes terminal writes so a log line never lands between the
// cursor save and restore of a status update.
var termMu sync.Mutex

type termWriter struct{}

func (termWriter) Write(p []byte) (int, error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns a log output that never interleaves with the status
// line.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

const banner = `
         __                             _       __    __
   _____/ /____  ____ _      _______(_)___ _/ /_  / /_
  / ___/ __/ _ \/ __ \ | /| / / ___/ / __ '/ __ \/ __/
 (__  ) /_/  __/ /_/ / |/ |/ / /  / / /_/ / / / / /_
/____/\__/\___/ .___/|__/|__/_/  /_/\__, /_/ /_/\__/
             /_/                   /____/
          >> PLANS FROM UNRELIABLE MODEL OUTPUT <<`

func PrintBanner() {
	fmt.Print("\033[2J\033[H")
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		pad := max((width-utf8.RuneCountInString(l))/2, 0)
		fmt.Printf("%s%s%s%s\n", strings.Repeat(" ", pad), ansiCyan, l, ansiReset)
	}
}

// InitializeTerminal confines scrolling to the rows below the status line.
func InitializeTerminal() {
	fmt.Printf("\033[%d;r\033[%d;1H", logRow, logRow)
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// StatusView is everything the status line shows.
type StatusView struct {
	Role      Role
	Task      string
	Heartbeat time.Time
	Totals    Totals
	Uptime    time.Duration
}

// CurrentView reads the process-wide status.
func CurrentView() StatusView {
	role, task, hb := GetStatus()
	return StatusView{
		Role:      role,
		Task:      task,
		Heartbeat: hb,
		Totals:    GetTotals(),
		Uptime:    time.Since(startTime).Round(time.Second),
	}
}

// health grades the heartbeat age; the serve loop beats every 30s.
func health(age time.Duration) (string, string) {
	switch {
	case age < 40*time.Second:
		return "healthy", ansiCyan
	case age < 90*time.Second:
		return "lagging", ansiYellow
	}
	return "offline", ansiMagenta
}

// StatusLine renders v without escape codes in at most width runes. The
// active task is shortened first.
func StatusLine(v StatusView, now time.Time, width int) string {
	state, _ := health(now.Sub(v.Heartbeat))
	t := v.Totals
	head := fmt.Sprintf("[%s] %s | %-9s ", v.Heartbeat.Format("15:04:05"), state, v.Role)
	tail := fmt.Sprintf(" | plans %d steps %d failed %d denied %d skipped %d | up %s",
		t.Plans, t.Steps, t.Failed, t.Denied, t.Skipped, v.Uptime)

	task := v.Task
	if task == "" {
		task = "waiting"
	}
	room := width - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	return head + shorten(task, room) + tail
}

// shorten cuts s to n runes, marking the cut with an ellipsis.
func shorten(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// PrintLiveStatus redraws the status row in place.
func PrintLiveStatus() {
	v := CurrentView()
	_, color := health(time.Since(v.Heartbeat))
	line := StatusLine(v, time.Now(), termWidth())

	termMu.Lock()
	defer termMu.Unlock()
	fmt.Printf("\033[s\033[%d;1H\033[K%s%s%s\033[u", statusRow, color, line, ansiReset)
}
