// Command cilaoskiosk shows the Cilaos map narrative full screen on the
// tourist-office display. It starts the server when none is running and
// switches from the startup log to the narrative page once the server is healthy.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"

	webview "github.com/webview/webview_go"
)

var (
	serverAddr = flag.String("server", "127.0.0.1:8420", "Address of the cilaosgo server")
	serverBin  = flag.String("start", "", "Server binary to launch when none answers (empty: never launch)")
	lockAddr   = flag.String("lock", "127.0.0.1:8429", "Loopback address held while the kiosk runs")
	debug      = flag.Bool("debug", false, "Enable webview developer tools")
)

func main() {
	flag.Parse()

	// Single instance: a second kiosk cannot bind the lock address.
	lock, err := net.Listen("tcp", *lockAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cilaoskiosk is already running")
		return
	}
	defer lock.Close()

	// Webview requires main thread
	runtime.LockOSThread()

	w := webview.New(*debug)
	defer w.Destroy()

	// Visitors must not leave the narrative.
	w.Init(`
		window.addEventListener('contextmenu', function(e) { e.preventDefault(); }, true);
		document.addEventListener('keydown', function(e) {
			if (e.key === 'F5' || (e.ctrlKey && (e.key === 'r' || e.key === 'l'))) e.preventDefault();
		}, true);
	`)
	w.SetTitle("Cilaos")
	w.SetSize(1080, 1920, webview.HintNone)

	logProxy := func(msg string) {
		w.Dispatch(func() {
			w.Eval("window.addLogLine(" + escapeJS(msg) + ")")
		})
	}
	readyProxy := func(url string) {
		w.Dispatch(func() {
			w.Navigate(url)
		})
	}

	mgr := NewManager(logProxy, readyProxy, *serverAddr, *serverBin)
	defer mgr.Stop()

	// The startup page is served locally so the webview never shows a blank window.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open startup page: %v\n", err)
		os.Exit(1)
	}
	defer ln.Close()
	go func() {
		_ = http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(startupPage))
		}))
	}()

	w.Navigate("http://" + ln.Addr().String())
	mgr.Start()
	w.Run()
}

func escapeJS(s string) string {
	b, _ := json.Marshal(s)
	// json.Marshal returns "string", surrounding quotes included.
	return string(b)
}
