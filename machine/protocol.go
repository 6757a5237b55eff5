package machine

// Single-character commands understood by the arm firmware.
const (
	cmdHome              = "h"
	cmdAngles            = "p"
	cmdForwardKinematics = "k"
	cmdInverseKinematics = "m"
	cmdMoveTo            = "i"
	cmdPositions         = "o"
	cmdEnable            = "e"
	cmdDisable           = "d"
	cmdStepAxis2         = "s"
	cmdJogAxis1          = "1"
	cmdJogAxis2          = "2"

	// session commands are written without a trailing newline
	cmdRecord = 'g'
	cmdStop   = 'x'
	cmdPlay   = 'r'
)

// Trajectory stream framing.
const (
	StartSentinel = "INICIO_TRAYECTORIA"
	EndSentinel   = "FIN_TRAYECTORIA"

	TokenReady = "RDY"
	TokenAck   = "OK"
	TokenDone  = "DONE"
)
