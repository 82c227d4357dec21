/*
Package tweaks applies a Tweaks Mapping to a flow document.

The rules mirror Langflow's own tweak processing:

  - A key is matched against node ids first, then against display names.
  - Only fields already declared in the node template are written.
  - NestedDict fields receive the tweak value as their whole value.
  - An object value is merged key by key into the field; for file fields every
    key is written as file_path.
  - A scalar value is written to "value" ("file_path" for file fields).
  - Keys whose value is not an object are global and apply to every node.

Component source code can never be replaced through a tweak.
*/
package tweaks
