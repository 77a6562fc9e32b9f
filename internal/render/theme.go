package render

// Theme holds colors for call-graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by call-edge kind.
	EdgeDirect        string
	EdgeTail          string
	EdgeIndirect      string
	EdgeRecursiveSelf string

	// Node accents.
	ExternalFill string // <unknown-external> sink node
	PathFill     string // nodes on the worst-case longest path
	ISRFill      string // interrupt-handler roots

	ClusterBorder string
	ClusterLabel  string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeDirect:        "#424242", // dark gray
	EdgeTail:          "#0B3D91", // NASA blue
	EdgeIndirect:      "#9E9E9E", // gray, dotted
	EdgeRecursiveSelf: "#FC3D21", // NASA red

	ExternalFill: "#ECEFF1", // blue-gray 50
	PathFill:     "#FFE0B2", // amber, worst-case path highlight
	ISRFill:      "#E1F5FE", // light blue

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
