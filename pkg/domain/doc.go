/*
Package domain contains the core models of the flow builder.

It defines the persisted conversation steps and the visual graph that is
derived from them while a flow is being edited. This package is kept pure and
free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Step: One message/prompt unit of a chatbot flow. Its message and input
    payloads are tagged unions selected by MessageType and InputType.
  - FlowDocument: The persisted aggregate, an ordered sequence of Steps.
  - GraphNode: A canvas node, either bound to a Step or a palette placeholder.
  - Edge: A directed "next step" connection between two node ports.
  - CanvasCommand: A structural change the editor asks a rendering surface to apply.
*/
package domain
