package ecs

// UpdateFrame is handed to every system during one Scheduler pass. It is
// shared by systems running concurrently; Commands is safe for that.
type UpdateFrame struct {
	DeltaTime float64
	Frame     int64
	Commands  *Commands
	Storage   *Storage
}

func newUpdateFrame(dt float64, frame int64, storage *Storage) *UpdateFrame {
	return &UpdateFrame{
		DeltaTime: dt,
		Frame:     frame,
		Commands:  newCommands(),
		Storage:   storage,
	}
}
