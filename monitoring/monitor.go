// Package monitoring turns a running simulation into a small web server, so
// the train state and the in-flight bus traffic can be inspected and the
// engine paused and resumed from outside the process.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/sarchlab/tcms/sim"
	"github.com/sarchlab/tcms/tcms"
)

// Monitor exposes a scheduler and its engine over HTTP.
type Monitor struct {
	engine     sim.Engine
	scheduler  *tcms.Scheduler
	portNumber int
	openDash   bool
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithDashboardOpening makes StartServer open the status page in the local
// browser.
func (m *Monitor) WithDashboardOpening() *Monitor {
	m.openDash = true
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterScheduler registers the scheduler to be monitored.
func (m *Monitor) RegisterScheduler(s *tcms.Scheduler) {
	m.scheduler = s
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/button/{name}", m.pressButton)
	r.HandleFunc("/api/resource", m.listResources)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr,
		"Monitoring simulation with http://localhost:%d\n", port)

	go func() {
		err = http.Serve(listener, r)
		dieOnErr(err)
	}()

	if m.openDash {
		url := fmt.Sprintf("http://localhost:%d/api/status", port)
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open dashboard: %s\n", err)
		}
	}
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

type transmissionRsp struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Payload   string  `json:"payload"`
	Progress  float64 `json:"progress"`
}

type statusRsp struct {
	Now              float64           `json:"now"`
	Speed            float64           `json:"speed"`
	TargetSpeed      float64           `json:"target_speed"`
	BrakesApplied    bool              `json:"brakes_applied"`
	EmergencyStop    bool              `json:"emergency_stop"`
	Doors            []bool            `json:"doors"`
	Passengers       int               `json:"passengers"`
	AtStation        bool              `json:"at_station"`
	DistanceTraveled float64           `json:"distance_traveled"`
	DisplayMessage   string            `json:"display_message"`
	Transmissions    []transmissionRsp `json:"transmissions"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	defer m.engine.Continue()

	tr := m.scheduler.Train()
	ctrl := m.scheduler.Control()

	rsp := statusRsp{
		Now:              float64(m.engine.CurrentTime()),
		Speed:            tr.Speed,
		TargetSpeed:      tr.TargetSpeed,
		BrakesApplied:    tr.BrakesApplied,
		EmergencyStop:    tr.EmergencyStop,
		Doors:            tr.Doors[:],
		Passengers:       tr.Passengers,
		AtStation:        tr.AtStation(),
		DistanceTraveled: tr.DistanceTraveled,
		DisplayMessage:   ctrl.DisplayMessage,
		Transmissions:    []transmissionRsp{},
	}

	if transport := m.scheduler.Transport(); transport != nil {
		for _, t := range transport.Transmissions() {
			rsp.Transmissions = append(rsp.Transmissions, transmissionRsp{
				Sender:    string(t.Envelope.Sender),
				Recipient: string(t.Envelope.Recipient),
				Payload:   t.Envelope.Payload,
				Progress:  t.Progress(),
			})
		}
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) pressButton(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.engine.Pause()
	m.scheduler.PressButton(name)
	m.engine.Continue()

	w.WriteHeader(http.StatusOK)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
