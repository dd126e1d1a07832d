// Command titusctl inspects shipment workbooks from the terminal and asks a
// running dashboard to reload its source.
package main

func main() {
	Execute()
}
