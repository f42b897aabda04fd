// thermal-view is a remote preview client: it connects to a running
// thermal-stream's /ws/frames websocket and shows the JPEG frames in
// a local window. No sensor hardware required.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/openthermal/go-senxor/internal/log"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "thermal-stream preview address")
	title := flag.String("title", "Thermal Preview (remote)", "Window title")
	flag.Parse()
	log.Init("")

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/frames"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", u.String(), err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Info("connected", "url", u.String())

	// Closing the connection on SIGINT unblocks ReadMessage below.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
	}()

	win := gocv.NewWindow(*title)
	defer win.Close()

	frames := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("stream ended", "frames", frames, "err", err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		img, err := gocv.IMDecode(data, gocv.IMReadColor)
		if err != nil || img.Empty() {
			log.Warn("bad frame", "bytes", len(data))
			continue
		}
		win.IMShow(img)
		img.Close()
		frames++

		if win.WaitKey(1) == 'q' {
			log.Info("quit requested", "frames", frames)
			return
		}
	}
}
