package process

import (
	psutil_process "github.com/shirou/gopsutil/process"
)

// Process is a running OS process
type Process interface {
	Pid() int32
	Executable() string
	Path() (string, error)
	CmdlineSlice() ([]string, error)
	Signal(sig Signal) error
}

type process struct {
	*psutil_process.Process
}

func (p process) Pid() int32 {
	return p.Process.Pid
}

func (p process) Executable() string {
	name, _ := p.Process.Name()
	return name
}

func (p process) Path() (string, error) {
	return p.Process.Exe()
}

func (p process) CmdlineSlice() ([]string, error) {
	return p.Process.CmdlineSlice()
}

// Processes lists all running processes
func Processes() ([]Process, error) {
	ps, err := psutil_process.Processes()
	if err != nil {
		return nil, err
	}

	procs := make([]Process, 0, len(ps))
	for _, _p := range ps {
		procs = append(procs, process{_p})
	}
	return procs, nil
}

// Exists returns if the process with pid is still running
func Exists(pid int32) bool {
	exists, err := psutil_process.PidExists(pid)
	return err == nil && exists
}
